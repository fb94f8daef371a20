// Package tasks is a small task list built on tapestry forms. It is served
// by "tapestry serve".
package tasks

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pthm/tapestry"
	"github.com/pthm/tapestry/lib/ioc"
)

// StoreID is the id of the task store service.
const StoreID = "tasks.Store"

// PageName is the name the page is served under.
const PageName = "tasks"

// Module defines the task store and the encoders and validations the page
// uses. With seedData set, sample tasks are added at registry startup.
func Module(seedData bool) *ioc.ModuleDef {
	m := ioc.NewModule("tasks")
	ioc.Construct[Store](m, "Store", newMemoryStore)

	ioc.ContributeMapped[reflect.Type, any](m, tapestry.ValueEncoderSourceID,
		func(c *ioc.MappedConfiguration[reflect.Type, any], _ ioc.ServiceResources) error {
			c.Add(reflect.TypeFor[ID](), tapestry.ValueEncoderFuncs[ID]{
				To: func(id ID) string { return strconv.Itoa(int(id)) },
				From: func(s string) (ID, error) {
					n, err := strconv.Atoi(s)
					return ID(n), err
				},
			})
			return nil
		})

	ioc.ContributeMapped[string, tapestry.Validation](m, tapestry.FieldValidatorSourceID,
		func(c *ioc.MappedConfiguration[string, tapestry.Validation], _ ioc.ServiceResources) error {
			c.Add("notblank", tapestry.Validation{
				Func: func(fl validator.FieldLevel) bool {
					return strings.TrimSpace(fl.Field().String()) != ""
				},
				Message: "{label} must not be blank.",
			})
			return nil
		})

	if seedData {
		ioc.ContributeOrdered[ioc.Runnable](m, ioc.RegistryStartupID,
			func(c *ioc.OrderedConfiguration[ioc.Runnable], res ioc.ServiceResources) error {
				c.Add("SeedTasks", ioc.RunnableFunc(func() error {
					store, err := ioc.GetService[Store](res, StoreID)
					if err != nil {
						return err
					}
					seed(store)
					return nil
				}))
				return nil
			})
	}
	return m
}
