package campaign

import (
	"testing"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

func TestNewSnapshotSortsContributions(t *testing.T) {
	c := newCampaign(t, 10)
	for _, who := range []ledger.AccountID{"zed.near", alice, "mike.near", bob} {
		c, _ = Contribute(c, who, 2, start)
	}

	snap := NewSnapshot(c)
	want := []ledger.AccountID{alice, bob, "mike.near", "zed.near"}
	if len(snap.Contributions) != len(want) {
		t.Fatalf("contributions = %v", snap.Contributions)
	}
	for i, account := range want {
		if snap.Contributions[i].Account != account || snap.Contributions[i].Amount != 2 {
			t.Fatalf("contributions[%d] = %+v, want %s", i, snap.Contributions[i], account)
		}
	}
	if snap.TotalFunds != 8 || snap.Completed {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	c := newCampaign(t, 10)
	c, _ = Contribute(c, alice, 2, start)
	snap := NewSnapshot(c)

	c.Contributions[alice] = 100
	if snap.Contributions[0].Amount != 2 {
		t.Fatal("snapshot shares storage with campaign")
	}
}

func TestNewDetails(t *testing.T) {
	c := newCampaign(t, 10)
	c, _ = Contribute(c, alice, 2, start)
	c, _ = Contribute(c, bob, 3, start)
	c, _ = SetImageURL(c, owner, "https://img")
	c, _ = Finalize(c, owner, start)

	d := NewDetails(c)
	if d.Owner != owner || d.Name != "Garden" || d.FundingGoal != 10 || d.TotalFunds != 5 {
		t.Fatalf("details = %+v", d)
	}
	if d.TotalContributors != 2 || !d.Completed || d.ImageURL != "https://img" || d.Deadline != c.Deadline {
		t.Fatalf("details = %+v", d)
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"active":                    StatusActive,
		" COMPLETED ":               StatusCompleted,
		"CAMPAIGN_STATUS_COMPLETED": StatusCompleted,
	}
	for in, want := range tests {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseStatus("draft"); ok {
		t.Fatal("expected draft to be rejected")
	}
}

func TestIsStatusTransitionAllowed(t *testing.T) {
	if !IsStatusTransitionAllowed(StatusActive, StatusCompleted) {
		t.Fatal("expected active -> completed")
	}
	if IsStatusTransitionAllowed(StatusCompleted, StatusActive) {
		t.Fatal("completion must be terminal")
	}
	if IsStatusTransitionAllowed(StatusCompleted, StatusCompleted) {
		t.Fatal("expected completed -> completed to be rejected")
	}
}
