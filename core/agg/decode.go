package agg

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huangsam/stackreport/schema"
)

// Decoder turns one worker result document into a RawStackRecord.
type Decoder interface {
	Decode(raw json.RawMessage) (schema.RawStackRecord, error)
}

// DecoderFor returns the decoding strategy for a worker kind.
func DecoderFor(kind schema.WorkerKind) (Decoder, error) {
	switch kind {
	case schema.StackAggregatorV2:
		return v2Decoder{}, nil
	case schema.StackAggregatorV1:
		return v1Decoder{}, nil
	default:
		return nil, &UnsupportedWorkerError{Kind: kind}
	}
}

type audit struct {
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
}

type v2Result struct {
	Ecosystem            string `json:"ecosystem"`
	AnalyzedDependencies []struct {
		Name                   string           `json:"name"`
		Version                string           `json:"version"`
		PublicVulnerabilities  []map[string]any `json:"public_vulnerabilities"`
		PrivateVulnerabilities []map[string]any `json:"private_vulnerabilities"`
	} `json:"analyzed_dependencies"`
	UnknownDependencies []schema.Dependency `json:"unknown_dependencies"`
	LicenseAnalysis     struct {
		UnknownLicenses struct {
			Unknown []any `json:"unknown"`
		} `json:"unknown_licenses"`
	} `json:"license_analysis"`
	Audit audit `json:"_audit"`
}

type v2Decoder struct{}

func (v2Decoder) Decode(raw json.RawMessage) (schema.RawStackRecord, error) {
	var r v2Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return schema.RawStackRecord{}, fmt.Errorf("decode v2 result: %w", err)
	}

	rec := schema.RawStackRecord{
		Ecosystem:           schema.Ecosystem(r.Ecosystem),
		UnknownDependencies: r.UnknownDependencies,
		UnknownLicenses:     r.LicenseAnalysis.UnknownLicenses.Unknown,
		StartedAt:           r.Audit.StartedAt,
		EndedAt:             r.Audit.EndedAt,
	}
	for _, dep := range r.AnalyzedDependencies {
		rec.Dependencies = append(rec.Dependencies, schema.Dependency{Name: dep.Name, Version: dep.Version})
		for _, cve := range dep.PrivateVulnerabilities {
			rec.PrivateVulnerabilities = append(rec.PrivateVulnerabilities, cve)
			rec.CVEKeys = append(rec.CVEKeys, cveKey(cve["cve_ids"], cve["cvss"]))
		}
		for _, cve := range dep.PublicVulnerabilities {
			rec.PublicVulnerabilities = append(rec.PublicVulnerabilities, cve)
			rec.CVEKeys = append(rec.CVEKeys, cveKey(cve["cve_ids"], cve["cvss"]))
		}
	}
	return rec, nil
}

type v1Result struct {
	StackData []struct {
		UserStackInfo struct {
			Ecosystem    string `json:"ecosystem"`
			Dependencies []struct {
				Package string `json:"package"`
				Version string `json:"version"`
			} `json:"dependencies"`
			UnknownDependencies []schema.Dependency `json:"unknown_dependencies"`
			LicenseAnalysis     struct {
				UnknownLicenses struct {
					ReallyUnknown []any `json:"really_unknown"`
				} `json:"unknown_licenses"`
			} `json:"license_analysis"`
			AnalyzedDependencies []struct {
				Security []map[string]any `json:"security"`
			} `json:"analyzed_dependencies"`
		} `json:"user_stack_info"`
	} `json:"stack_data"`
	Audit audit `json:"_audit"`
}

type v1Decoder struct{}

var errNoStackData = errors.New("result has no stack_data")

func (v1Decoder) Decode(raw json.RawMessage) (schema.RawStackRecord, error) {
	var r v1Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return schema.RawStackRecord{}, fmt.Errorf("decode v1 result: %w", err)
	}
	if len(r.StackData) == 0 {
		return schema.RawStackRecord{}, errNoStackData
	}

	info := r.StackData[0].UserStackInfo
	rec := schema.RawStackRecord{
		Ecosystem:           schema.Ecosystem(info.Ecosystem),
		UnknownDependencies: info.UnknownDependencies,
		UnknownLicenses:     info.LicenseAnalysis.UnknownLicenses.ReallyUnknown,
		StartedAt:           r.Audit.StartedAt,
		EndedAt:             r.Audit.EndedAt,
	}
	for _, dep := range info.Dependencies {
		rec.Dependencies = append(rec.Dependencies, schema.Dependency{Name: dep.Package, Version: dep.Version})
	}
	for _, pkg := range info.AnalyzedDependencies {
		for _, cve := range pkg.Security {
			rec.PublicVulnerabilities = append(rec.PublicVulnerabilities, cve)
			rec.CVEKeys = append(rec.CVEKeys, cveKey(cve["CVE"], cve["CVSS"]))
		}
	}
	return rec, nil
}

// cveKey formats "{cve_id}:{cvss}". A list of ids is joined with commas.
func cveKey(id, cvss any) string {
	return scalarString(id) + ":" + scalarString(cvss)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, scalarString(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
