package executor

import "github.com/autonmap/scan-orchestrator/entity"

// Argument templates per profile. This is static configuration, not runtime
// data: keeping it as a lookup table keeps the executor a pure translation
// from (profile, targets, ports, timing) to an argv.
var profileArgs = map[string][]string{
	entity.ProfileBasicVersionDetection: {"-sV", "-Pn"},
	entity.ProfileAggressiveScan:        {"-A", "-Pn"},
	entity.ProfileVulnTCPEvasive:        {"-n", "-A", "-Pn", "-sT", "-sC", "--script=vuln", "-f", "--mtu", "24"},
	entity.ProfileVulnSYNStealth:        {"-n", "-A", "-Pn", "-sS", "-sC", "--script=vuln", "-f", "--mtu", "24"},
	entity.ProfileProxyVulnScan:         {"-A", "-Pn", "-sT", "--script=vuln"},
}
