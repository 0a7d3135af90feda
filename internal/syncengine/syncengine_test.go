package syncengine

import (
	"reflect"
	"sort"
	"testing"
)

func TestMergeModelFilterEmptyProfileAndFilterMeansAllModels(t *testing.T) {
	got := mergeModelFilter(map[string]bool{}, nil)
	if got != nil {
		t.Fatalf("expected nil (no restriction), got %v", got)
	}
}

func TestMergeModelFilterProfileOnlyExpandsToAllProfileModels(t *testing.T) {
	profile := map[string]bool{"sale.order": true, "res.partner": true}
	got := mergeModelFilter(profile, nil)
	sort.Strings(got)
	want := []string{"res.partner", "sale.order"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeModelFilterUnionsCallerFilterWithProfile(t *testing.T) {
	profile := map[string]bool{"sale.order": true, "res.partner": true}
	got := mergeModelFilter(profile, []string{"sale.order", "stock.picking"})
	sort.Strings(got)
	want := []string{"res.partner", "sale.order", "stock.picking"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeModelFilterUnrestrictedProfileStaysUnrestricted(t *testing.T) {
	got := mergeModelFilter(map[string]bool{}, []string{"sale.order"})
	if got != nil {
		t.Fatalf("expected nil (profile already unrestricted), got %v", got)
	}
}

func TestDefaultAndMaxLimitConstants(t *testing.T) {
	if DefaultLimit != 100 {
		t.Errorf("DefaultLimit = %d, want 100", DefaultLimit)
	}
	if MaxLimit != 1000 {
		t.Errorf("MaxLimit = %d, want 1000", MaxLimit)
	}
}
