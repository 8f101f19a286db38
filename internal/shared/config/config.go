package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"subpool/internal/shared/types"
)

// LoadIni 加载 subpool.ini 行为配置文件。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvString(&cfg.LogConf.Level, "LOG_LEVEL")
	return nil
}

// LoadSources 加载 sources.json 数据文件。
func LoadSources(fileName string) ([]*types.SourceProfile, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		// 文件不存在时返回空列表而不是错误
		if os.IsNotExist(err) {
			return []*types.SourceProfile{}, nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var profiles []*types.SourceProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources.json: %w", err)
	}
	return profiles, nil
}

// SaveSources 将订阅源配置列表保存到 sources.json。
func SaveSources(fileName string, profiles []*types.SourceProfile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal source profiles: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
