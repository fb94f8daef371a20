package tapestry

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

// Ids of the services defined by Module.
const (
	ClientDataEncoderID    = "tapestry.ClientDataEncoder"
	ValueEncoderSourceID   = "tapestry.ValueEncoderSource"
	FieldValidatorSourceID = "tapestry.FieldValidatorSource"
	RequestGlobalsID       = "tapestry.RequestGlobals"
	RequestFiltersID       = "tapestry.RequestFilters"
	FormMetricsID          = "tapestry.FormMetrics"
	MetricsRegistryID      = "tapestry.MetricsRegistry"
)

var configType = reflect.TypeFor[config.Config]()

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Module defines the framework services. cfg is injectable into any
// constructor as a config.Config parameter.
func Module(cfg config.Config) *ioc.ModuleDef {
	m := ioc.NewModule("tapestry")
	m.ProxyFactory(ioc.ProxyFactoryFor(NewRequestGlobalsProxy))

	ioc.ContributeOrdered[ioc.ObjectProvider](m, ioc.MasterObjectProviderID,
		func(c *ioc.OrderedConfiguration[ioc.ObjectProvider], _ ioc.ServiceResources) error {
			c.Add("Config", ioc.ObjectProviderFunc(func(t reflect.Type, _ []string, _ ioc.ObjectLocator) (any, bool, error) {
				if t == configType {
					return cfg, true, nil
				}
				return nil, false, nil
			}))
			return nil
		})

	ioc.Construct[MetricsRegistry](m, "MetricsRegistry", newMetricsRegistry)
	ioc.Construct[FormMetrics](m, "FormMetrics", newFormMetrics)

	ioc.Construct[ClientDataEncoder](m, "ClientDataEncoder", func(cfg config.Config) (ClientDataEncoder, error) {
		return NewClientDataEncoder([]byte(cfg.SecretKey), cfg.EncryptFormData)
	})
	ioc.Decorate[ClientDataEncoder](m, "ClientDataEncoder",
		func(delegate ClientDataEncoder, res ioc.ServiceResources) (ClientDataEncoder, error) {
			reg, err := ioc.GetService[MetricsRegistry](res, MetricsRegistryID)
			if err != nil {
				return nil, err
			}
			return newTimedEncoder(delegate, reg)
		})

	ioc.Construct[ValueEncoderSource](m, "ValueEncoderSource", newValueEncoderSource)
	ioc.ContributeMapped[reflect.Type, any](m, "ValueEncoderSource",
		func(c *ioc.MappedConfiguration[reflect.Type, any], _ ioc.ServiceResources) error {
			for t, enc := range builtinEncoders() {
				c.Add(t, enc)
			}
			return nil
		})

	ioc.Construct[FieldValidatorSource](m, "FieldValidatorSource", newFieldValidatorSource)
	ioc.ContributeMapped[string, Validation](m, "FieldValidatorSource",
		func(c *ioc.MappedConfiguration[string, Validation], _ ioc.ServiceResources) error {
			c.Add("slug", Validation{
				Func: func(fl validator.FieldLevel) bool {
					return slugPattern.MatchString(fl.Field().String())
				},
				Message: "{label} may only contain lowercase letters, digits and dashes.",
			})
			return nil
		})

	ioc.Build[RequestGlobals](m, "RequestGlobals", func(ioc.ServiceResources) (RequestGlobals, error) {
		return &requestGlobals{}, nil
	}).Scope(ioc.ScopePerThread)

	ioc.Construct[RequestFilters](m, "RequestFilters", newRequestFilters)
	ioc.ContributeOrdered[RequestFilter](m, "RequestFilters",
		func(c *ioc.OrderedConfiguration[RequestFilter], res ioc.ServiceResources) error {
			globals, err := ioc.GetService[RequestGlobals](res, RequestGlobalsID)
			if err != nil {
				return err
			}
			threads, err := ioc.GetService[ioc.PerthreadManager](res, ioc.PerthreadManagerID)
			if err != nil {
				return err
			}
			c.Add("RequestID", requestIDFilter, "before:*")
			c.Add("Globals", globalsFilter(globals, threads), "after:RequestID")
			c.Add("Logging", loggingFilter(res.Logger()), "after:Globals")
			c.Add("Recover", recoverFilter(res.Logger()), "after:Logging")
			return nil
		})

	ioc.ContributeOrdered[ioc.Runnable](m, ioc.RegistryStartupID,
		func(c *ioc.OrderedConfiguration[ioc.Runnable], res ioc.ServiceResources) error {
			c.Add("ClientDataEncoderCheck", ioc.RunnableFunc(func() error {
				return checkEncoder(res)
			}))
			return nil
		})

	return m
}

// checkEncoder round-trips a sample payload through the encoder.
func checkEncoder(loc ioc.ObjectLocator) error {
	enc, err := ioc.GetService[ClientDataEncoder](loc, ClientDataEncoderID)
	if err != nil {
		return err
	}
	sink := &ActionSink{}
	sink.Store("check", Action{Kind: ActionInvoke, Name: "check"})
	s, err := sink.Encode(enc, "check")
	if err != nil {
		return fmt.Errorf("tapestry: client data encoder: %w", err)
	}
	actions, err := DecodeActions(enc, "check", s)
	if err != nil {
		return fmt.Errorf("tapestry: client data encoder: %w", err)
	}
	if len(actions) != 1 || actions[0].Action.Name != "check" {
		return fmt.Errorf("tapestry: client data encoder does not round-trip")
	}
	return nil
}
