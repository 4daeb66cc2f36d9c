// Heimdall is the governance control plane for execution engines.
//
// It keeps every engine in a DISABLED, DORMANT, SANDBOX or ACTIVE lifecycle state,
// holds the global go-live flag and kill switch, and clears actions before an
// engine may produce real-world effects. Every change is written to a
// hash-chained audit trail.
//
// Usage:
//
//	# Start the admin server
//	heimdall run --config /etc/heimdall/config.yaml
//
//	# Inspect the gate and pull the kill switch
//	heimdall golive status
//	heimdall killswitch engage --by alice --reason "bounce spike"
//
//	# Move an engine through its lifecycle
//	heimdall engine transition outreach DORMANT --by alice
//
//	# Ask whether an action would be cleared
//	heimdall guard check outreach OUTREACH
//
//	# Verify the audit chain
//	heimdall audit verify
//
//	# Print the go-live runbook
//	heimdall runbook --output json
package main

func main() {
	Execute()
}
