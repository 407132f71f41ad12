// Package config loads crucible's daemon settings from a config file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultPath is read when no config file is named explicitly. It may
	// be absent.
	DefaultPath = "/etc/crucible/crucible.yaml"

	// EnvPrefix prefixes environment overrides: CRUCIBLE_LOG_LEVEL=debug.
	EnvPrefix = "CRUCIBLE"
)

// Setting keys. Flags bound with BindFlags must use the same names.
const (
	KeySocket          = "socket"
	KeyTimeout         = "timeout"
	KeyLogLevel        = "log-level"
	KeyMetricsAddr     = "metrics-addr"
	KeyOVMFDir         = "ovmf-dir"
	KeyCPUMapDir       = "cpu-map-dir"
	KeyIDMappedRootDir = "idmapped-root-dir"
	KeyServiceUnit     = "service-unit"
	KeyGracePeriod     = "grace-period"
)

// Settings configures the crucible daemon and CLI.
type Settings struct {
	// Socket is the libvirtd unix socket.
	Socket string `mapstructure:"socket" validate:"required,startswith=/"`

	// Timeout bounds dialing the socket.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`

	// MetricsAddr is the listen address of crucible serve.
	MetricsAddr string `mapstructure:"metrics-addr" validate:"required"`

	OVMFDir         string `mapstructure:"ovmf-dir" validate:"required,startswith=/"`
	CPUMapDir       string `mapstructure:"cpu-map-dir" validate:"required,startswith=/"`
	IDMappedRootDir string `mapstructure:"idmapped-root-dir" validate:"required,startswith=/"`

	// ServiceUnit is started before connecting when set. Empty leaves
	// libvirtd alone.
	ServiceUnit string `mapstructure:"service-unit"`

	// GracePeriod is how long Delete waits after destroying a running
	// domain before undefining it.
	GracePeriod time.Duration `mapstructure:"grace-period" validate:"gte=0"`
}

// New returns a viper instance with crucible's defaults and environment
// overrides in place.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeySocket, "/run/truenas_libvirt/libvirt-sock")
	v.SetDefault(KeyTimeout, 5*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsAddr, "127.0.0.1:9464")
	v.SetDefault(KeyOVMFDir, "/usr/share/OVMF")
	v.SetDefault(KeyCPUMapDir, "/usr/share/libvirt/cpu_map")
	v.SetDefault(KeyIDMappedRootDir, "/run/truenas_containers/root")
	v.SetDefault(KeyServiceUnit, "")
	v.SetDefault(KeyGracePeriod, 7*time.Second)
	return v
}

// BindFlags binds every flag in flags to the setting of the same name.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var result error
	flags.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}

// Load reads the config file at path into v and returns the validated
// settings. An empty path reads DefaultPath if it exists.
func Load(v *viper.Viper, path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	err := validator.New().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var result error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("invalid setting %s: failed %s validation", settingName(fe.StructField()), fe.Tag()))
	}
	return result
}

func settingName(field string) string {
	switch field {
	case "Socket":
		return KeySocket
	case "Timeout":
		return KeyTimeout
	case "LogLevel":
		return KeyLogLevel
	case "MetricsAddr":
		return KeyMetricsAddr
	case "OVMFDir":
		return KeyOVMFDir
	case "CPUMapDir":
		return KeyCPUMapDir
	case "IDMappedRootDir":
		return KeyIDMappedRootDir
	case "GracePeriod":
		return KeyGracePeriod
	}
	return field
}
