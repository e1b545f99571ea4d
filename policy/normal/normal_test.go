package normal

import (
	"testing"

	"github.com/IvanBrykalov/framecache/policy"
)

func TestNormal_Apply(t *testing.T) {
	t.Parallel()

	p := New()
	tests := []struct {
		a       policy.Action
		maxLive int
		want    policy.Resize
	}{
		{policy.Clear, 10, policy.Resize{MaxLive: 8, Clear: true}},
		{policy.Clear, 1, policy.Resize{MaxLive: 0, Clear: true}},
		{policy.Clear, 0, policy.Resize{MaxLive: 0, Clear: true}},
		{policy.Grow, 10, policy.Resize{MaxLive: 12}},
		{policy.Grow, 0, policy.Resize{MaxLive: 2}},
		{policy.Shrink, 10, policy.Resize{MaxLive: 9}},
		{policy.Shrink, 0, policy.Resize{MaxLive: 0}},
		{policy.NoChange, 10, policy.Resize{MaxLive: 10}},
		{policy.NoChange, 0, policy.Resize{MaxLive: 0}},
	}
	for _, tt := range tests {
		if got := p.Apply(tt.a, tt.maxLive); got != tt.want {
			t.Fatalf("Apply(%v, %d) = %+v, want %+v", tt.a, tt.maxLive, got, tt.want)
		}
	}
	if p.Name() != "normal" {
		t.Fatalf("Name want normal, got %q", p.Name())
	}
}
