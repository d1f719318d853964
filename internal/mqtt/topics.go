package mqtt

import "strings"

// Topic suffixes below the configured prefix.
const (
	suffixStatus = "status"
	suffixState  = "state"
	suffixSet    = "set"
	suffixReload = "reload"
	levelAction  = "action"
)

// Topics builds and parses the bridge's topics under a common prefix:
//
//	<prefix>/status                 online/offline, retained
//	<prefix>/<device>/<zone>/state  zone state JSON, retained
//	<prefix>/<device>/<zone>/set    merge patch JSON
//	<prefix>/reload                 run discovery again
//	<prefix>/action/<name>          invoke a script action, JSON object args
type Topics struct {
	Prefix string
}

// Status returns the bridge availability topic.
func (t Topics) Status() string {
	return t.Prefix + "/" + suffixStatus
}

// ZoneState returns the retained state topic of a zone.
func (t Topics) ZoneState(device, zone string) string {
	return t.Prefix + "/" + device + "/" + zone + "/" + suffixState
}

// ZoneSet returns the command topic of a zone.
func (t Topics) ZoneSet(device, zone string) string {
	return t.Prefix + "/" + device + "/" + zone + "/" + suffixSet
}

// AllZoneSets returns the wildcard subscription for every zone command topic.
func (t Topics) AllZoneSets() string {
	return t.Prefix + "/+/+/" + suffixSet
}

// Reload returns the discovery command topic.
func (t Topics) Reload() string {
	return t.Prefix + "/" + suffixReload
}

// Action returns the topic that invokes a script action.
func (t Topics) Action(name string) string {
	return t.Prefix + "/" + levelAction + "/" + name
}

// AllActions returns the wildcard subscription for every action topic.
func (t Topics) AllActions() string {
	return t.Prefix + "/" + levelAction + "/+"
}

// ParseAction extracts the action name from an action topic.
func (t Topics) ParseAction(topic string) (string, bool) {
	name, found := strings.CutPrefix(topic, t.Prefix+"/"+levelAction+"/")
	if !found || !ValidLevel(name) {
		return "", false
	}
	return name, true
}

// ParseZoneSet extracts device and zone from a zone command topic.
func (t Topics) ParseZoneSet(topic string) (device, zone string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != suffixSet || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ValidLevel reports whether name can be used as a single topic level.
func ValidLevel(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/+#\x00")
}
