package supervisor

import (
	"sort"

	"github.com/markus8006/plcfleet/pkg/models"
)

// maxReadRegisters is the Modbus limit on registers per read request.
const maxReadRegisters = 125

// readGapAllowance lets a batch absorb a short address gap instead of
// splitting into two requests. Reading one dead register is cheaper
// than a second round trip.
const readGapAllowance = 1

// Batch is one contiguous read request covering several configured
// registers of the same type.
type Batch struct {
	Type    models.RegisterType
	Start   int
	Count   int
	Members []models.RegisterConfig
}

// End returns the last register address the batch covers.
func (b *Batch) End() int {
	return b.Start + b.Count - 1
}

// Offset returns the word offset of a member's address within the
// batch's raw response.
func (b *Batch) Offset(c *models.RegisterConfig) int {
	return c.Address - b.Start
}

// batchTypeOrder fixes the iteration order over register types so the
// produced batch list is deterministic.
var batchTypeOrder = []models.RegisterType{
	models.RegisterHolding,
	models.RegisterInput,
	models.RegisterCoil,
	models.RegisterDiscrete,
}

// BuildBatches partitions register configs by type, sorts each
// partition by address, and greedily packs address-adjacent configs
// into contiguous read requests. A batch never exceeds
// maxReadRegisters and never spans a gap wider than readGapAllowance.
func BuildBatches(configs []models.RegisterConfig) []Batch {
	byType := make(map[models.RegisterType][]models.RegisterConfig)
	for _, c := range configs {
		byType[c.RegisterType] = append(byType[c.RegisterType], c)
	}

	var batches []Batch
	for _, rt := range batchTypeOrder {
		group := byType[rt]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Address < group[j].Address
		})

		cur := Batch{Type: rt, Start: group[0].Address}
		for _, c := range group {
			end := c.End()
			if len(cur.Members) > 0 {
				fits := c.Address <= cur.End()+1+readGapAllowance
				within := end-cur.Start+1 <= maxReadRegisters
				if !fits || !within {
					batches = append(batches, cur)
					cur = Batch{Type: rt, Start: c.Address}
				}
			}
			if n := end - cur.Start + 1; n > cur.Count {
				cur.Count = n
			}
			cur.Members = append(cur.Members, c)
		}
		batches = append(batches, cur)
	}
	return batches
}
