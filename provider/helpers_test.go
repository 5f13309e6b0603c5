package provider

import (
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"chatgate/config"
	"chatgate/model"
)

type staticConfigs struct {
	baseURL string
}

func (s *staticConfigs) Config(model.ProviderID) config.ServiceConfig {
	return config.ServiceConfig{BaseURL: s.baseURL}
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

// newTestDeps points p at srv with a short timeout and a fresh status store.
func newTestDeps(t *testing.T, p model.ProviderID, srv *httptest.Server, mutate func(*config.ServiceConfig)) Deps {
	t.Helper()
	cfg := config.DefaultServiceConfig(p)
	cfg.BaseURL = srv.URL
	cfg.Timeout = config.IntPtr(5000)
	cfg.MaxRetries = config.IntPtr(0)
	if mutate != nil {
		mutate(&cfg)
	}
	return Deps{
		Provider: p,
		Config:   cfg,
		Status:   NewStatusStore(),
		Metrics:  NewMetrics(nil),
		Logger:   quietLogger(),
	}
}
