package models

import "testing"

func TestStageNext(t *testing.T) {
	for i, st := range Stages {
		next, ok := st.Next()
		if i == len(Stages)-1 {
			if ok {
				t.Errorf("%s should have no successor, got %s", st, next)
			}
			continue
		}
		if !ok || next != Stages[i+1] {
			t.Errorf("%s.Next() = %s, %v; want %s", st, next, ok, Stages[i+1])
		}
	}
}

func TestStageNextUnknown(t *testing.T) {
	if _, ok := Stage("chrysalis").Next(); ok {
		t.Error("unknown stage should have no successor")
	}
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage("emergence")
	if err != nil {
		t.Fatalf("ParseStage: %v", err)
	}
	if s != StageEmergence {
		t.Errorf("ParseStage = %s, want %s", s, StageEmergence)
	}
	if _, err := ParseStage("Emergence"); err == nil {
		t.Error("stage names are case-sensitive")
	}
}

func TestCocoonWallets(t *testing.T) {
	c := Cocoon{Contributors: []Contributor{
		{Wallet: "0xA", Role: RoleCreator},
		{Wallet: "0xB", Role: "artist"},
		{Wallet: "0xA", Role: "artist"},
		{Wallet: ""},
	}}
	got := c.Wallets()
	if len(got) != 2 || got[0] != "0xA" || got[1] != "0xB" {
		t.Errorf("Wallets = %v, want [0xA 0xB]", got)
	}
}
