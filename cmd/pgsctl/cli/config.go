package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/consts"
	"github.com/ubuntu/strictpgs/log"
)

// appConfig defines the configuration parameters of pgsctl.
type appConfig struct {
	Prefix    string
	LoginDefs string `mapstructure:"login_defs"`
	Verbosity int
}

// initViperConfig sets verbosity level and add config env variables and file support based on name prefix.
func initViperConfig(name string, cmd *cobra.Command, vip *viper.Viper, configDir string) (err error) {
	defer decorate.OnError(&err, "can't load configuration")

	// Get cmdline flag for verbosity to configure logger until we have everything parsed.
	v, err := cmd.Flags().GetCount("verbosity")
	if err != nil {
		return fmt.Errorf("internal error: no persistent verbosity flag installed on cmd: %w", err)
	}
	setVerboseMode(v)

	// Handle configuration.
	if v, err := cmd.Flags().GetString("config"); err == nil && v != "" {
		vip.SetConfigFile(v)
	} else {
		vip.SetConfigName(name)
		vip.AddConfigPath("./")
		vip.AddConfigPath("$HOME/")
		vip.AddConfigPath(configDir)
	}

	if err := vip.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if errors.As(err, &e) {
			log.Debugf(context.Background(), "No configuration file: %v. We will only use the defaults, env variables or flags.", e)
		} else {
			return fmt.Errorf("invalid configuration file: %w", err)
		}
	} else {
		log.Infof(context.Background(), "Using configuration file: %v", vip.ConfigFileUsed())
	}

	// Handle environment.
	vip.SetEnvPrefix(name)
	vip.AutomaticEnv()

	// Visit manually env to bind every possibly related environment variable to be able to unmarshall
	// those into a struct.
	// More context on https://github.com/spf13/viper/pull/1429.
	prefix := strings.ToUpper(name) + "_"
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			continue
		}

		s := strings.Split(e, "=")
		k := strings.ToLower(strings.TrimPrefix(s[0], prefix))
		if err := vip.BindEnv(k, s[0]); err != nil {
			return fmt.Errorf("could not bind environment variable: %w", err)
		}
	}

	return nil
}

// installConfigFlag installs a --config option.
func installConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().StringP("config", "c", "", "use a specific configuration file")
}

// installVerbosityFlag adds the -v and -vv options and returns the reference to it.
func installVerbosityFlag(cmd *cobra.Command, vip *viper.Viper) *int {
	r := cmd.PersistentFlags().CountP("verbosity", "v", "issue INFO (-v) or DEBUG (-vv) output")
	decorate.LogOnError(vip.BindPFlag("verbosity", cmd.PersistentFlags().Lookup("verbosity")))
	return r
}

// installPathFlags adds the options selecting the account database and returns the reference to the prefix.
func installPathFlags(cmd *cobra.Command, vip *viper.Viper) *string {
	r := cmd.PersistentFlags().StringP("prefix", "p", consts.DefaultPrefix, "root directory of the account database")
	decorate.LogOnError(vip.BindPFlag("prefix", cmd.PersistentFlags().Lookup("prefix")))

	cmd.PersistentFlags().String("login-defs", "", "login.defs file providing the ID ranges (default <prefix>/etc/login.defs)")
	decorate.LogOnError(vip.BindPFlag("login_defs", cmd.PersistentFlags().Lookup("login-defs")))
	return r
}

// setVerboseMode change ErrorFormat and logs between very, middly and non verbose.
func setVerboseMode(level int) {
	switch level {
	case 0:
		log.SetLevel(consts.DefaultLogLevel)
	case 1:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.DebugLevel)
	}
}
