package policy

import "testing"

func TestFactoriesValidate(t *testing.T) {
	for name, p := range map[string]Policy{
		"default": Default(),
		"peak":    Peak(),
		"offpeak": Offpeak(),
	} {
		if err := p.Validate(); err != nil {
			t.Fatalf("%s policy invalid: %v", name, err)
		}
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	p := Default()
	p.MaxBatchSize = 0
	p.PairDetourCap = 0.5
	p.WaveCount = 0
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
}

func TestOffpeakDisablesChaining(t *testing.T) {
	if Offpeak().EnableContinuousChaining {
		t.Fatal("offpeak must cluster by pickup_id only")
	}
	if !Peak().EnableContinuousChaining {
		t.Fatal("peak must chain")
	}
}
