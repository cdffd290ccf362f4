package params

import (
	"context"
	"fmt"
	"slices"
)

// Write is one pending store write produced by ResolveDefaults.
type Write struct {
	Key   string
	Value []byte
}

// Resolution is the outcome of the default fill: writes for the primary
// partition and writes for the shadow partition, both in defaults order.
type Resolution struct {
	Primary []Write
	Shadow  []Write
}

// ResolveDefaults decides, key by key, how the primary and shadow
// partitions are reconciled against the default list.
//
// For each default:
//   - unset in primary, or forceReset: primary takes the shadow value if
//     the shadow has one, otherwise the default
//   - otherwise the shadow takes the primary value
//
// ResolveDefaults is pure; FillDefaults applies the result.
func ResolveDefaults(primary, shadow View, defaults []Default, forceReset bool) Resolution {
	var res Resolution
	for _, d := range defaults {
		current, set := primary.Get(d.Key)
		if !set || forceReset {
			value := d.Value
			if saved, ok := shadow.Get(d.Key); ok {
				value = saved
			}
			res.Primary = append(res.Primary, Write{Key: d.Key, Value: slices.Clone(value)})
			continue
		}
		res.Shadow = append(res.Shadow, Write{Key: d.Key, Value: slices.Clone(current)})
	}
	return res
}

// FillDefaults applies the default fill to primary and shadow, then clears
// the DoToggleReset flag in primary.
//
// Parameters:
//   - ctx: Context for store access
//   - primary: Live partition
//   - shadow: Persist-volume copy of user toggles
//   - defaults: Ordered default list
//
// Returns:
//   - Resolution: The writes that were applied
//   - error: First store error; later writes are not attempted
func FillDefaults(ctx context.Context, primary, shadow Store, defaults []Default) (Resolution, error) {
	forceReset, err := primary.GetBool(ctx, "DoToggleReset")
	if err != nil {
		return Resolution{}, fmt.Errorf("reading toggle reset flag: %w", err)
	}

	pv, err := primary.Snapshot(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("reading primary: %w", err)
	}
	sv, err := shadow.Snapshot(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("reading shadow: %w", err)
	}

	res := ResolveDefaults(pv, sv, defaults, forceReset)

	for _, w := range res.Primary {
		if err := primary.Put(ctx, w.Key, w.Value); err != nil {
			return res, err
		}
	}
	for _, w := range res.Shadow {
		if err := shadow.Put(ctx, w.Key, w.Value); err != nil {
			return res, err
		}
	}

	if err := primary.PutBool(ctx, "DoToggleReset", false); err != nil {
		return res, err
	}
	return res, nil
}

// OverrideDefaults returns defaults with values replaced from overrides.
// Override keys not already in the list are appended in sorted order.
func OverrideDefaults(defaults []Default, overrides map[string]string) []Default {
	out := make([]Default, 0, len(defaults)+len(overrides))
	used := make(map[string]bool, len(overrides))
	for _, d := range defaults {
		if v, ok := overrides[d.Key]; ok {
			d = Default{Key: d.Key, Value: []byte(v)}
			used[d.Key] = true
		}
		out = append(out, d)
	}

	var extra []string
	for k := range overrides {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		out = append(out, Default{Key: k, Value: []byte(overrides[k])})
	}
	return out
}
