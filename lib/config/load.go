package config

import (
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/viper"
	"strings"
)

var (
	Logger = logger.GetLogger("config")
)

const (
	// EnvPrefix is the prefix of all environment variables (e.g. DFACADE_REDIS_HOST)
	EnvPrefix = "dfacade"
)

// credentialFields are the four fields read per backend type
var credentialFields = []string{"host", "port", "username", "password"}

// LoadEnvFiles loads .env and .env.local into the process environment if they exist.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// NewViper creates a viper instance that reads DFACADE_* environment variables
// and binds the credential keys of every known backend type.
// If configFile is not empty it is read as well (any format viper supports).
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// bind explicitly so that IsSet reports keys only present in the environment
	for _, t := range database.KnownBackends {
		for _, field := range credentialFields {
			if err := v.BindEnv(string(t) + "." + field); err != nil {
				return nil, err
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, database.Errorf(database.CodeConfiguration, "could not read config file %s: %v", configFile, err)
		}
	}
	return v, nil
}

// Load builds a registry from a viper instance.
// A backend type is configured if its host key (e.g. "redis.host") is set.
func Load(v *viper.Viper) (*Registry, error) {
	reg := NewRegistry()
	if err := LoadInto(reg, v); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadInto configures all backend types found in v into an existing registry.
func LoadInto(reg *Registry, v *viper.Viper) error {
	for _, t := range database.KnownBackends {
		prefix := string(t) + "."
		if !v.IsSet(prefix + "host") {
			continue
		}
		if err := reg.Configure(
			t,
			v.GetString(prefix+"host"),
			v.GetInt(prefix+"port"),
			v.GetString(prefix+"username"),
			v.GetString(prefix+"password"),
		); err != nil {
			return err
		}
	}
	return nil
}
