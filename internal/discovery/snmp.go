package discovery

import (
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// System group OIDs queried from hosts exposing an SNMP agent.
const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"
	oidSysName  = "1.3.6.1.2.1.1.5.0"
)

// SNMPEnricher fetches sysDescr and sysName from hosts with port 161
// open. Failures are silent; SNMP is opportunistic enrichment.
type SNMPEnricher struct {
	community string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSNMPEnricher creates an SNMP enricher.
func NewSNMPEnricher(community string, timeout time.Duration, logger *zap.Logger) *SNMPEnricher {
	if community == "" {
		community = "public"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SNMPEnricher{community: community, timeout: timeout, logger: logger}
}

// Enrich queries the host's system group and fills SysDescr/SysName.
func (e *SNMPEnricher) Enrich(h *models.DiscoveredHost) {
	if !h.HasOpenPort(161) {
		return
	}

	client := &gosnmp.GoSNMP{
		Target:    h.IP,
		Port:      161,
		Community: e.community,
		Version:   gosnmp.Version2c,
		Timeout:   e.timeout,
		Retries:   1,
	}
	if err := client.Connect(); err != nil {
		e.logger.Debug("snmp connect failed", zap.String("ip", h.IP), zap.Error(err))
		return
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysDescr, oidSysName})
	if err != nil {
		e.logger.Debug("snmp get failed", zap.String("ip", h.IP), zap.Error(err))
		return
	}

	for _, v := range result.Variables {
		str, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		switch v.Name {
		case "." + oidSysDescr:
			h.SysDescr = string(str)
		case "." + oidSysName:
			h.SysName = string(str)
		}
	}
	if h.SysDescr != "" || h.SysName != "" {
		h.Via(models.ViaSNMP)
	}
}
