package agg

import (
	"fmt"

	"github.com/huangsam/stackreport/core/algo"
	"github.com/huangsam/stackreport/schema"
)

// Accumulator holds everything gathered from one aggregation pass.
// It is built by value; add returns the updated copy.
type Accumulator struct {
	TotalRequests     int
	Requests          map[schema.Ecosystem]int
	Stacks            map[schema.Ecosystem][]string
	Deps              map[schema.Ecosystem][]string
	UnknownDeps       map[schema.Ecosystem][]string
	UnknownLicenses   []any
	CVEKeys           []string
	TotalResponseTime float64
	ResponseTime      map[schema.Ecosystem]float64
	Details           []schema.StackDetail
}

func newAccumulator() Accumulator {
	return Accumulator{
		Requests:     map[schema.Ecosystem]int{},
		Stacks:       map[schema.Ecosystem][]string{},
		Deps:         map[schema.Ecosystem][]string{},
		UnknownDeps:  map[schema.Ecosystem][]string{},
		ResponseTime: map[schema.Ecosystem]float64{},
		Details:      []schema.StackDetail{},
	}
}

func (acc Accumulator) add(rec schema.RawStackRecord, responseTime float64) Accumulator {
	eco := rec.Ecosystem
	stack := algo.NormalizeDeps(rec.Dependencies)
	unknown := algo.NormalizeDeps(rec.UnknownDependencies)

	acc.TotalRequests++
	acc.Requests[eco]++
	acc.Stacks[eco] = append(acc.Stacks[eco], algo.StackKey(stack))
	acc.Deps[eco] = append(acc.Deps[eco], stack...)
	acc.UnknownDeps[eco] = append(acc.UnknownDeps[eco], unknown...)
	acc.UnknownLicenses = append(acc.UnknownLicenses, rec.UnknownLicenses...)
	acc.CVEKeys = append(acc.CVEKeys, rec.CVEKeys...)
	acc.TotalResponseTime += responseTime
	acc.ResponseTime[eco] += responseTime

	acc.Details = append(acc.Details, schema.StackDetail{
		Ecosystem:           eco,
		Stack:               stack,
		UnknownDependencies: unknown,
		License: schema.LicenseInfo{
			Unknown: nonNil(rec.UnknownLicenses),
		},
		PublicVulnerabilities:  schema.CVEList{CVEList: nonNil(rec.PublicVulnerabilities)},
		PrivateVulnerabilities: schema.CVEList{CVEList: nonNil(rec.PrivateVulnerabilities)},
		ResponseTime:           fmt.Sprintf("%f ms", responseTime),
	})
	return acc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
