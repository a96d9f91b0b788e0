package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

// LoadCampaign reads a campaign file (column mapping, campaign text, pacing)
// into a PipelineConfig. Pacing and page timeout default to the pipeline
// section of c when the file leaves them out. Unknown keys are rejected.
func (c *Config) LoadCampaign(path string) (model.PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PipelineConfig{}, eris.Wrap(err, "config: read campaign")
	}
	return c.ParseCampaign(data)
}

// ParseCampaign decodes campaign YAML. See LoadCampaign.
func (c *Config) ParseCampaign(data []byte) (model.PipelineConfig, error) {
	pc := model.PipelineConfig{
		Pacing:             c.Pipeline.Pacing,
		PageTimeoutSeconds: c.Pipeline.PageTimeoutSecs,
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pc); err != nil && !errors.Is(err, io.EOF) {
		return model.PipelineConfig{}, eris.Wrap(err, "config: parse campaign")
	}
	return pc, nil
}
