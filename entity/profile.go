package entity

// Scan profiles are a fixed catalogue; there is no dynamic registration.
// The argument template behind each profile lives in the executor package.
const (
	ProfileBasicVersionDetection = "basic_version_detection"
	ProfileAggressiveScan        = "aggressive_scan"
	ProfileVulnTCPEvasive        = "vuln_tcp_evasive"
	ProfileVulnSYNStealth        = "vuln_syn_stealth"
	ProfileProxyVulnScan         = "proxy_vuln_scan"
)

type ProfileInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var profileCatalogue = []ProfileInfo{
	{ProfileBasicVersionDetection, "Service version detection (-sV). Fast and broadly useful."},
	{ProfileAggressiveScan, "Aggressive scan (-A) with OS detection, version detection and default scripts."},
	{ProfileVulnTCPEvasive, "TCP connect scan running 'vuln' category scripts with packet fragmentation for firewall evasion."},
	{ProfileVulnSYNStealth, "SYN stealth scan running 'vuln' category scripts with packet fragmentation. Requires privileges."},
	{ProfileProxyVulnScan, "Vulnerability scan routed through a proxy via proxychains (requires configuration)."},
}

// Profiles returns the read-only profile catalogue in a stable order.
func Profiles() []ProfileInfo {
	out := make([]ProfileInfo, len(profileCatalogue))
	copy(out, profileCatalogue)
	return out
}

func ValidProfile(name string) bool {
	for _, p := range profileCatalogue {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Timing templates map to nmap -T0..-T5. T3 is nmap's normal timing.
const DefaultTimingTemplate = "T3"

var timingTemplates = map[string]bool{
	"T0": true, "T1": true, "T2": true, "T3": true, "T4": true, "T5": true,
}

func ValidTimingTemplate(t string) bool {
	return timingTemplates[t]
}
