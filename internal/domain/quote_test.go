package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestApplyDedupesExpandTo(t *testing.T) {
	g := Geography{BasedIn: "United Kingdom", ExpandTo: []string{"Netherlands", "France", "Netherlands"}}
	s := WizardUpdate{Geography: &g}.Apply(NewWizardState())

	if want := []string{"Netherlands", "France"}; !reflect.DeepEqual(s.Geography.ExpandTo, want) {
		t.Errorf("ExpandTo = %v, want %v", s.Geography.ExpandTo, want)
	}
	if len(g.ExpandTo) != 3 {
		t.Error("Apply must not modify the update's slice")
	}
}

func TestDataPatchHasNoPriceFields(t *testing.T) {
	var p DataPatch
	dec := json.NewDecoder(strings.NewReader(`{"total_price":1}`))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err == nil {
		t.Fatal("total_price should be rejected")
	}

	plan := "Premium Plan"
	u := DataPatch{Plan: &plan}.Update()
	if u.TotalPrice != nil || u.BasePrice != nil || u.CountryFees != nil || u.PlanDefaulted != nil {
		t.Errorf("patch leaked price fields: %+v", u)
	}
	if got := u.Apply(NewWizardState()).Plan; got != plan {
		t.Errorf("Plan = %q", got)
	}
}
