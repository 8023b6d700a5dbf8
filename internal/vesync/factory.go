package vesync

// builderFunc constructs a concrete device from a list record.
type builderFunc func(DeviceRecord, *Manager) Device

// Per-family model tables. Each maps a cloud device type string to its
// constructor. Regional model aliases for the bypass families are
// resolved inside the constructors.
var (
	bulbModels = map[string]builderFunc{
		"ESL100":   newBulbESL100,
		"ESL100CW": newBulbESL100CW,
	}

	fanModels = map[string]builderFunc{
		"LV-PUR131S":  newAir131,
		"Core200S":    newAirPurifier,
		"Core300S":    newAirPurifier,
		"Core400S":    newAirPurifier,
		"Core600S":    newAirPurifier,
		"Vital100S":   newVitalPurifier,
		"Vital200S":   newVitalPurifier,
		"Classic300S": newHumidifier,
		"Classic200S": newHumidifier,
		"Dual200S":    newHumidifier,
		"LV600S":      newHumidifier,
		"OASISMIST":   newHumidifier,
	}

	kitchenModels = map[string]builderFunc{
		"CS137-AF/CS158-AF": newAirFryer,
		"CS137-AF":          newAirFryer,
		"CS158-AF":          newAirFryer,
		"CS358-AF":          newAirFryer,
	}

	outletModels = map[string]builderFunc{
		"wifi-switch-1.3": newOutlet7A,
		"ESW03-USA":       newOutlet10A,
		"ESW01-EU":        newOutlet10A,
		"ESW15-USA":       newOutlet15A,
		"ESO15-TB":        newOutdoorPlug,
		"BSDOG01":         newOutletBSDGO1,
	}

	switchModels = map[string]builderFunc{
		"ESWL01": newWallSwitch,
		"ESWL03": newWallSwitch,
		"ESWD16": newDimmerSwitch,
	}
)

// The regional model numbers of the bypass families fold into the fan
// table so each alias dispatches without a duplicated entry.
func init() {
	for alias, primary := range purifierAliases {
		fanModels[alias] = fanModels[primary]
	}
	for alias, primary := range humidifierAliases {
		fanModels[alias] = fanModels[primary]
	}
	for alias, primary := range vitalAliases {
		fanModels[alias] = fanModels[primary]
	}
}

// buildFromTable returns a device when the record's type is in the table.
func buildFromTable(table map[string]builderFunc) func(DeviceRecord, *Manager) (Device, bool) {
	return func(rec DeviceRecord, m *Manager) (Device, bool) {
		build, ok := table[rec.DeviceType]
		if !ok {
			return nil, false
		}
		return build(rec, m), true
	}
}

// factories lists the device families in dispatch order. The first
// family that recognises a device type wins; later tables are not
// consulted. The order is fixed and part of the package contract.
var factories = []func(DeviceRecord, *Manager) (Device, bool){
	buildFromTable(bulbModels),
	buildFromTable(fanModels),
	buildFromTable(kitchenModels),
	buildFromTable(outletModels),
	buildFromTable(switchModels),
}

// buildDevice constructs a device for a list record by consulting each
// family table in order. Returns false when no family recognises the
// device type.
func buildDevice(rec DeviceRecord, m *Manager) (Device, bool) {
	for _, factory := range factories {
		if dev, ok := factory(rec, m); ok {
			return dev, true
		}
	}
	return nil, false
}
