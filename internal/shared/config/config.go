package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/imdario/mergo"
	"gopkg.in/ini.v1"

	"github.com/makinje16/AirSignals/internal/shared/types"
)

// Default 返回所有字段的默认值。localhost 开关默认关闭，由 ini 或 -localhost 打开。
func Default() types.Config {
	return types.Config{
		ServerConf: types.ServerConf{
			Host: "0.0.0.0",
			Port: 8080,
		},
		RoomConf: types.RoomConf{
			MaxClients: 2,
			MaxWaiting: 64,
		},
		SocketConf: types.SocketConf{
			ReadLimit:        64 * 1024,
			PongWaitSeconds:  60,
			WriteWaitSeconds: 10,
		},
		LogConf: types.LogConf{
			Level: "info",
		},
	}
}

// LoadIni 加载 airsignals.ini，补齐默认值并应用环境变量覆盖。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	return apply(cfg, iniFile)
}

// LoadIniBytes is LoadIni for in-memory content.
func LoadIniBytes(cfg *types.Config, content []byte) error {
	iniFile, err := ini.Load(content)
	if err != nil {
		return fmt.Errorf("failed to parse ini content: %w", err)
	}
	return apply(cfg, iniFile)
}

// apply 先补齐默认值再映射 ini，这样文件里显式写的 0 或 false 不会被默认值覆盖。
func apply(cfg *types.Config, iniFile *ini.File) error {
	if err := mergo.Merge(cfg, Default()); err != nil {
		return fmt.Errorf("failed to merge default config: %w", err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map ini content to config struct: %w", err)
	}
	overrideFromEnvInt(&cfg.ServerConf.Port, "AIRSIGNALS_PORT")
	overrideFromEnvString(&cfg.LogConf.Level, "AIRSIGNALS_LOG_LEVEL")
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
