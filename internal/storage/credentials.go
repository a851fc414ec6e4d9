package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shenikar/incident_documents/internal/config"
)

type credentialKind string

const (
	credsConnectionString credentialKind = "connection_string"
	credsStaticKey        credentialKind = "access_key"
	credsAmbient          credentialKind = "ambient"
)

// endpointSettings - адрес и учетные данные, собранные из одного из трех
// вариантов конфигурации: строка подключения, пара ключей или окружение.
type endpointSettings struct {
	Kind      credentialKind
	Endpoint  string // host[:port] без схемы
	Secure    bool
	AccessKey string
	SecretKey string
	Region    string
}

func (s endpointSettings) URL() string {
	if s.Endpoint == "" {
		return ""
	}
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	return scheme + "://" + s.Endpoint
}

func resolveEndpoint(cfg *config.Config) (endpointSettings, error) {
	settings := endpointSettings{Region: cfg.StorageRegion, Secure: cfg.StorageUseSSL}

	switch {
	case cfg.StorageConnectionString != "":
		u, err := url.Parse(cfg.StorageConnectionString)
		if err != nil {
			return settings, fmt.Errorf("invalid STORAGE_CONNECTION_STRING: %w", err)
		}
		if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return settings, fmt.Errorf("invalid STORAGE_CONNECTION_STRING: expected http(s)://ACCESS:SECRET@host[:port]")
		}
		secret, _ := u.User.Password()
		if u.User.Username() == "" || secret == "" {
			return settings, fmt.Errorf("invalid STORAGE_CONNECTION_STRING: access key and secret are required")
		}
		settings.Kind = credsConnectionString
		settings.Endpoint = u.Host
		settings.Secure = u.Scheme == "https"
		settings.AccessKey = u.User.Username()
		settings.SecretKey = secret
		if region := u.Query().Get("region"); region != "" {
			settings.Region = region
		}
	case cfg.HasStaticStorageCredentials():
		settings.Kind = credsStaticKey
		settings.AccessKey = cfg.StorageAccessKey
		settings.SecretKey = cfg.StorageSecretKey
		settings.Endpoint, settings.Secure = splitScheme(cfg.StorageEndpoint, cfg.StorageUseSSL)
	default:
		settings.Kind = credsAmbient
		settings.Endpoint, settings.Secure = splitScheme(cfg.StorageEndpoint, cfg.StorageUseSSL)
	}
	return settings, nil
}

// splitScheme принимает endpoint как с http(s)://, так и без схемы
func splitScheme(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	}
	return strings.TrimSuffix(endpoint, "/"), secure
}
