package hub

import (
	"net/url"
	"strings"
)

const propertyOutputName = "$.on"

func modulePrefix(deviceID, moduleID string) string {
	return "devices/" + deviceID + "/modules/" + moduleID + "/"
}

// EventsTopic is the publish topic for output with properties encoded as a property bag.
func EventsTopic(deviceID, moduleID, output string, properties map[string]string) string {
	bag := make(url.Values, len(properties)+1)
	for k, v := range properties {
		bag.Set(k, v)
	}
	bag.Set(propertyOutputName, output)
	return modulePrefix(deviceID, moduleID) + "messages/events/" + bag.Encode()
}

// InputsFilter subscribes to every input routed to the module.
func InputsFilter(deviceID, moduleID string) string {
	return modulePrefix(deviceID, moduleID) + "#"
}

// ParseInputTopic splits devices/{d}/modules/{m}/inputs/{input}/{bag} into the input name and its properties.
func ParseInputTopic(deviceID, moduleID, topic string) (input string, properties map[string]string, ok bool) {
	rest, ok := strings.CutPrefix(topic, modulePrefix(deviceID, moduleID)+"inputs/")
	if !ok {
		return "", nil, false
	}
	input, rawBag, _ := strings.Cut(rest, "/")
	if input == "" {
		return "", nil, false
	}
	properties = make(map[string]string)
	values, err := url.ParseQuery(rawBag)
	if err != nil {
		return input, properties, true
	}
	for k, v := range values {
		if len(v) > 0 {
			properties[k] = v[0]
		}
	}
	return input, properties, true
}
