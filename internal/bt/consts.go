package bt

// GATT identifiers programmed into the insole firmware
const (
	DefaultDeviceName         = "ImpactInsoles"
	DefaultServiceUUID        = "12345678-1234-1234-1234-123456789abc"
	DefaultCharacteristicUUID = "abcd1234-ab12-ab12-ab12-abcdef123456"
)
