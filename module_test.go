package tapestry

import (
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

func TestModuleServices(t *testing.T) {
	reg := testRegistry(t)
	ids := reg.ServiceIDs()
	for _, id := range []string{
		ClientDataEncoderID,
		ValueEncoderSourceID,
		FieldValidatorSourceID,
		RequestGlobalsID,
		RequestFiltersID,
		FormMetricsID,
		MetricsRegistryID,
	} {
		if !slices.Contains(ids, id) {
			t.Errorf("service %s not defined", id)
		}
	}
	if err := reg.PerformRegistryStartup(); err != nil {
		t.Errorf("startup: %v", err)
	}
}

func TestModuleProvidesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = ":9999"

	reg, err := ioc.NewRegistryBuilder(ioc.WithLogger(zaptest.NewLogger(t))).Add(Module(cfg)).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Shutdown()

	got, err := ioc.AutobuildAs[string](reg, func(c config.Config) string { return c.Addr })
	if err != nil {
		t.Fatal(err)
	}
	if got != ":9999" {
		t.Errorf("injected Addr = %q", got)
	}
}

func TestModuleEncoderOverride(t *testing.T) {
	broken := ioc.NewModule("app")
	ioc.Decorate[ClientDataEncoder](broken, ClientDataEncoderID,
		func(delegate ClientDataEncoder, _ ioc.ServiceResources) (ClientDataEncoder, error) {
			return lossyEncoder{delegate}, nil
		})
	reg := testRegistry(t, broken)
	if err := reg.PerformRegistryStartup(); err == nil {
		t.Error("startup accepted an encoder that does not round-trip")
	}
}

type lossyEncoder struct{ ClientDataEncoder }

func (lossyEncoder) Decode(string, any) error { return errors.New("lost") }

func TestNewAppRequiresModule(t *testing.T) {
	reg, err := ioc.NewRegistryBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Shutdown()
	if _, err := NewApp(reg); err == nil {
		t.Error("NewApp succeeded without the tapestry module")
	}
}
