package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.MaxResults <= 0 || c.Search.MaxResults > 25 {
		return errors.New("search.max_results must be between 1 and 25")
	}
	return nil
}

func (c *Config) validateTTS() error {
	switch strings.ToLower(strings.TrimSpace(c.TTS.Engine)) {
	case "standard", "neural":
	default:
		return fmt.Errorf("tts.engine must be standard or neural, got %q", c.TTS.Engine)
	}
	switch c.TTS.SampleRateHz {
	case 8000, 16000:
	default:
		return fmt.Errorf("tts.sample_rate_hz must be 8000 or 16000 for PCM output, got %d", c.TTS.SampleRateHz)
	}
	if c.TTS.Workers < 1 || c.TTS.Workers > 16 {
		return errors.New("tts.workers must be between 1 and 16")
	}
	if strings.TrimSpace(c.TTS.HostVoice) == "" || strings.TrimSpace(c.TTS.ExpertVoice) == "" {
		return errors.New("tts.host_voice and tts.expert_voice must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
