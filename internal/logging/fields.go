package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/store"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供资源 key/视图/命中状态字段，供资源请求日志复用。
func RequestFields(key, view string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"key":       key,
		"view":      view,
		"cache_hit": cacheHit,
	}
}

// StoreFields 描述存储引擎身份，供打开/读写日志复用。
func StoreFields(info store.Info) logrus.Fields {
	fields := logrus.Fields{
		"backend":        info.Backend,
		"store":          info.Name,
		"schema_version": info.SchemaVersion,
	}
	if info.Location != "" {
		fields["location"] = info.Location
	}
	return fields
}
