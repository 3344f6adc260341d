package capability

import "sort"

// topCount is how many capabilities the stats view ranks by call volume.
const topCount = 5

// CallVolume pairs a capability name with its call count for ranking.
type CallVolume struct {
	Name  string `json:"name"`
	Calls int64  `json:"calls"`
}

// Stats is the aggregate view of the registry.
type Stats struct {
	Total      int            `json:"total"`
	Enabled    int            `json:"enabled"`
	Disabled   int            `json:"disabled"`
	TotalCalls int64          `json:"totalCalls"`
	ByCategory map[string]int `json:"byCategory"`
	TopByCalls []CallVolume   `json:"topByCalls"`
}

// Stats computes the aggregate view under the registry lock.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:      len(r.caps),
		ByCategory: make(map[string]int),
	}
	volumes := make([]CallVolume, 0, len(r.caps))
	for _, c := range r.caps {
		if c.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		s.TotalCalls += c.CallCount
		category := c.Category
		if category == "" {
			category = "uncategorized"
		}
		s.ByCategory[category]++
		volumes = append(volumes, CallVolume{Name: c.Name, Calls: c.CallCount})
	}

	sort.Slice(volumes, func(i, j int) bool {
		if volumes[i].Calls != volumes[j].Calls {
			return volumes[i].Calls > volumes[j].Calls
		}
		return volumes[i].Name < volumes[j].Name
	})
	if len(volumes) > topCount {
		volumes = volumes[:topCount]
	}
	s.TopByCalls = volumes
	return s
}
