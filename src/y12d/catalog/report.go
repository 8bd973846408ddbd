package catalog

import "fmt"

// OverlayResult is the dry run answer for one overlay
type OverlayResult struct {
	ID       string        `json:"id"`
	Status   OverlayStatus `json:"status"`
	Packages []string      `json:"packages"`
	Note     string        `json:"note"`
}

// CustomResult is the dry run answer for one custom package
type CustomResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Command string `json:"command"`
	Note    string `json:"note"`
}

// Report is the outcome of Inspect
type Report struct {
	Distro         string          `json:"distro"`
	PackageManager string          `json:"pkg_manager"`
	Overlays       []OverlayResult `json:"overlays"`
	CustomSoftware []CustomResult  `json:"custom_software"`
}

// Inspect classifies overlays and custom packages for a distro without
// touching anything else.
func (c *Catalog) Inspect(distro string, overlays, custom []string) Report {
	mgr, _ := c.Target(distro)
	r := Report{
		Distro:         distro,
		PackageManager: mgr,
		Overlays:       make([]OverlayResult, 0, len(overlays)),
		CustomSoftware: make([]CustomResult, 0, len(custom)),
	}

	for _, id := range overlays {
		res := OverlayResult{ID: id, Status: c.Status(mgr, id), Packages: []string{}}
		switch res.Status {
		case StatusUnknown:
			res.Note = "Package mapping not found, will attempt install"
		case StatusScript:
			res.Note = "Installed via external script/repo"
		default:
			res.Packages, _ = c.Lookup(mgr, id)
			res.Note = fmt.Sprintf("%d package(s) via %s", len(res.Packages), mgr)
		}
		r.Overlays = append(r.Overlays, res)
	}

	for _, name := range custom {
		cmd := InstallCommand(mgr, name)
		r.CustomSoftware = append(r.CustomSoftware, CustomResult{
			Name:    name,
			Status:  "custom",
			Command: cmd,
			Note:    "Will attempt: " + cmd,
		})
	}
	return r
}
