// Package generate renders the text artifacts of a build from its manifest.
//
// Every function here is pure: the same Manifest and kernel config always
// produce byte-identical output. The only timestamp that appears in any
// artifact is Manifest.Created.
package generate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Manifest is the resolved, immutable description of one build
type Manifest struct {
	JobID             string    `json:"jobId"`
	Distro            string    `json:"distro"`
	Mode              string    `json:"mode"`
	BaseImage         string    `json:"baseImage"`
	PackageManager    string    `json:"pkgManager"`
	Packages          []string  `json:"packages"`
	CustomSoftware    []string  `json:"customSoftware"`
	Overlays          []string  `json:"overlays"`
	Modules           []string  `json:"modules"`
	AIMode            bool      `json:"aiMode"`
	AIModel           string    `json:"aiModel"`
	KernelConfigLines int       `json:"kernelConfigLines"`
	Created           time.Time `json:"created"`
}

// ShortID returns the first 8 characters of the job id
func (m Manifest) ShortID() string {
	if len(m.JobID) <= 8 {
		return m.JobID
	}
	return m.JobID[:8]
}

// ISOName is the base name of the produced image, without extension
func (m Manifest) ISOName() string {
	return fmt.Sprintf("y12-%s-%s-%s", m.Distro, m.Mode, m.ShortID())
}

// MissingFields lists the required fields that are empty
func (m Manifest) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"jobId", m.JobID},
		{"distro", m.Distro},
		{"mode", m.Mode},
		{"baseImage", m.BaseImage},
		{"pkgManager", m.PackageManager},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ManifestJSON encodes m for manifest.json
func ManifestJSON(m Manifest) ([]byte, error) {
	m.Created = m.Created.UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// ParseManifest decodes manifest.json
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Packages == nil {
		m.Packages = []string{}
	}
	return m, nil
}
