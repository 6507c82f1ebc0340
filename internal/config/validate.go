package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.MaxFramesAhead < 1 {
		return errors.New("pipeline.max_frames_ahead must be at least 1")
	}
	if p.DeleteAttempts < 1 {
		return errors.New("pipeline.delete_attempts must be at least 1")
	}
	if p.DeleteBackoffMS < 0 {
		return errors.New("pipeline.delete_backoff_ms must be non-negative")
	}
	if p.MaxInflightDeletes < 1 {
		return errors.New("pipeline.max_inflight_deletes must be at least 1")
	}
	if p.Partitions < 1 {
		return errors.New("pipeline.partitions must be at least 1")
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return errors.New("pipeline.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Command == "" {
		return errors.New("engine.command must be set (or export UPSCALER_ENGINE)")
	}
	if c.Engine.Scale < 1 || c.Engine.Scale > 4 {
		return fmt.Errorf("engine.scale must be between 1 and 4, got %d", c.Engine.Scale)
	}
	// waifu2x vulkan builds only ship 1x/2x models.
	name := strings.ToLower(c.Engine.Name)
	if strings.Contains(name, "waifu2x") && strings.Contains(name, "vulkan") && c.Engine.Scale > 2 {
		return fmt.Errorf("engine.scale %d is not supported by %s", c.Engine.Scale, c.Engine.Name)
	}
	if c.Engine.NoiseLevel < -1 || c.Engine.NoiseLevel > 3 {
		return fmt.Errorf("engine.noise_level must be between -1 and 3, got %d", c.Engine.NoiseLevel)
	}
	if c.Engine.BlockSize < 1 {
		return errors.New("engine.block_size must be positive")
	}
	hasInput, hasOutput := false, false
	for _, arg := range c.Engine.Args {
		hasInput = hasInput || strings.Contains(arg, "{input}")
		hasOutput = hasOutput || strings.Contains(arg, "{output}")
	}
	if !hasInput || !hasOutput {
		return errors.New("engine.args must reference both {input} and {output}")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
