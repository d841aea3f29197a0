package conf

/*
   Package conf wraps viper for the claimsure app. Configuration is sourced
   from an env file when one is present (local development) and from the
   process environment otherwise (PROD/TEST/DEV).

   Assumptions:
   1. The configuration file is a env file
   2. The configuration file, once it is made available to the application,
   will stay immutable during the uptime of the application (exception is test)
*/

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	noconfigfound uint8 = 2
)

var state uint8 = configgood

func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file
	if err := v.ReadInConfig(); err != nil {
		state = noconfigfound
	}
	return v
}

func init() {
	// Local checkouts keep a decrypted env file next to the binary; deployed
	// environments rely on real environment variables only.
	var locations = []string{
		"shared_files/decrypted",
		"../shared_files/decrypted",
	}

	if success, loc := findEnv(locations); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

func findEnv(locations []string) (bool, string) {
	for _, loc := range locations {
		if _, err := os.Stat(loc + "/local.env"); err == nil {
			return true, loc
		}
	}
	return false, ""
}

// GetEnv retrieves the value stored in conf for the key. If it does not
// exist, "" empty string is returned.
func GetEnv(key string) string {
	if state == configgood {
		if value := envVars.GetString(key); value != "" {
			return value
		}
	}
	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}
	}
	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or testing. Protect parameter is type *testing.T,
// and is there to ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	if state == configgood {
		envVars.Set(key, value)
		return nil
	}
	return os.Setenv(key, value)
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}
	return os.Unsetenv(key)
}

// Checkout populates the supplied struct pointer from conf. Fields opt in
// via a `conf:"SOME_KEY"` tag; when the key has no value, `conf_default` is
// used. Supported field types: string, int, int64, float64, bool.
func Checkout(target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("conf: Checkout expects a struct pointer, got %T", target)
	}

	elem := v.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Type().Field(i)
		key, ok := field.Tag.Lookup("conf")
		if !ok {
			continue
		}

		raw := GetEnv(key)
		if raw == "" {
			raw = field.Tag.Get("conf_default")
		}
		if raw == "" {
			continue
		}

		if err := assign(elem.Field(i), raw); err != nil {
			return fmt.Errorf("conf: cannot assign %s from %s: %v", field.Name, key, err)
		}
	}

	return nil
}

func assign(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Float64:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(parsed)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
