package generate

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type composeFile struct {
	Version  string                    `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Build   composeBuild `yaml:"build"`
	Volumes []string     `yaml:"volumes"`
	Command string       `yaml:"command"`
}

type composeBuild struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

// Compose renders docker-compose.yml for a one command build
func Compose(m Manifest) (string, error) {
	name := m.ISOName()
	doc := composeFile{
		Version: "3.8",
		Services: map[string]composeService{
			"builder": {
				Build:   composeBuild{Context: ".", Dockerfile: FileDockerfile},
				Volumes: []string{"./output:/output"},
				Command: fmt.Sprintf(`sh -c "cp /output.iso /output/%s.iso && cp /output.iso.sha256 /output/%s.iso.sha256 && echo 'Build complete!'"`, name, name),
			},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode compose file: %w", err)
	}
	return buf.String(), nil
}
