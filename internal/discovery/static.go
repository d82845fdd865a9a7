package discovery

import (
	"context"
	"fmt"
)

// Static is the catalog baked into the deployment. When a Prober is set every
// entry is verified before use and unconfirmed entries are dropped.
type Static struct {
	Refs   []string
	Prober Prober
}

func (s Static) Name() string { return "static" }

func (s Static) Discover(ctx context.Context) ([]string, error) {
	if s.Prober == nil {
		return append([]string(nil), s.Refs...), nil
	}
	var verified []string
	for _, ref := range s.Refs {
		if s.Prober.Exists(ctx, ref) {
			verified = append(verified, ref)
		}
	}
	return verified, nil
}

// DefaultStaticRefs is the stock catalog: video1.mp4 through video10.mp4.
func DefaultStaticRefs(prefix string) []string {
	refs := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		refs = append(refs, fmt.Sprintf("%svideo%d.mp4", prefix, i))
	}
	return refs
}
