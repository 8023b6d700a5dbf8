package vesync

import (
	"context"
	"encoding/json"
	"fmt"
)

// Air fryer cook states as reported by the cloud.
const (
	CookStandby     = "standby"
	CookCooking     = "cooking"
	CookStopped     = "cookStop"
	CookEnded       = "cookEnd"
	CookHeating     = "heating"
	CookPreheatStop = "preheatStop"
	CookPreheatEnd  = "preheatEnd"
	CookPullOut     = "pullOut"
)

// Temperature units used by the fryer.
const (
	TempFahrenheit = "fahrenheit"
	TempCelsius    = "celsius"
)

// Fryer cook command constants. Manual cooks are sent as a fixed custom
// recipe, matching what the mobile app does.
const (
	fryerRecipeID     = 1
	fryerRecipeType   = 3
	fryerCustomRecipe = "Manual Cook"
	fryerCookMode     = "custom"
)

// fryerRequest is the body for the fryer's v1 bypass calls. The fryer
// additionally requires the device PID and country code.
type fryerRequest struct {
	authRequest
	CID             string         `json:"cid"`
	UUID            string         `json:"uuid,omitempty"`
	ConfigModule    string         `json:"configModule,omitempty"`
	PID             string         `json:"pid,omitempty"`
	UserCountryCode string         `json:"userCountryCode"`
	DebugMode       bool           `json:"debugMode"`
	Method          string         `json:"method,omitempty"`
	JSONCmd         map[string]any `json:"jsonCmd,omitempty"`
}

// AirFryer is the Cosori air fryer (CS137-AF, CS158-AF, CS358-AF).
//
// The fryer is a state machine: standby, preheating, cooking, paused
// and ended states gate which commands the cloud accepts. Commands that
// do not fit the current state return ErrUnsupported.
type AirFryer struct {
	BaseDevice

	pid        string
	readyStart bool

	CookStatus      string
	Preheat         bool
	TempUnit        string
	CurrentTemp     int
	CookSetTemp     int
	CookSetTime     int
	CookLastTime    int
	PreheatSetTime  int
	PreheatLastTime int
}

func newAirFryer(rec DeviceRecord, m *Manager) Device {
	return &AirFryer{
		BaseDevice: newBaseDevice(rec, m),
		CookStatus: CookStandby,
		TempUnit:   TempFahrenheit,
	}
}

func (f *AirFryer) Base() *BaseDevice { return &f.BaseDevice }

// ensurePID fetches the device PID required by fryer commands. The PID
// is stable per device and fetched once.
func (f *AirFryer) ensurePID(ctx context.Context) error {
	if f.pid != "" {
		return nil
	}
	body := struct {
		authRequest
		ConfigModule string `json:"configModule"`
		Region       string `json:"region"`
		Method       string `json:"method"`
	}{
		authRequest:  f.client().newAuthRequest(),
		ConfigModule: f.ConfigModule,
		Region:       f.DeviceRegion,
		Method:       "configInfo",
	}

	var result struct {
		PID string `json:"pid"`
	}
	if err := f.client().post(ctx, "/cloud/v1/deviceManaged/configInfo", bypassHeaders(), body, &result); err != nil {
		return fmt.Errorf("fetching fryer pid: %w", err)
	}
	f.pid = result.PID
	return nil
}

// command sends a jsonCmd to the fryer through the v1 bypass endpoint.
func (f *AirFryer) command(ctx context.Context, jsonCmd map[string]any) (json.RawMessage, error) {
	if err := f.ensurePID(ctx); err != nil {
		return nil, err
	}
	body := fryerRequest{
		authRequest:     f.client().newAuthRequest(),
		CID:             f.CID,
		UUID:            f.UUID,
		ConfigModule:    f.ConfigModule,
		PID:             f.pid,
		UserCountryCode: f.client().CountryCode(),
		JSONCmd:         jsonCmd,
	}

	var result json.RawMessage
	if err := f.client().post(ctx, "/cloud/v1/deviceManaged/bypass", bypassHeaders(), body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *AirFryer) Update(ctx context.Context) error {
	raw, err := f.command(ctx, map[string]any{"getStatus": "status"})
	if err != nil {
		return fmt.Errorf("fetching fryer status: %w", err)
	}

	var result struct {
		ReturnStatus struct {
			CookStatus      string `json:"cookStatus"`
			CurrentTemp     int    `json:"curentTemp"` // firmware spelling
			TargetTemp      int    `json:"targetTemp"`
			CookSetTemp     int    `json:"cookSetTemp"`
			CookSetTime     int    `json:"cookSetTime"`
			CookLastTime    int    `json:"cookLastTime"`
			TempUnit        string `json:"tempUnit"`
			PreheatSetTime  int    `json:"preheatSetTime"`
			PreheatLastTime int    `json:"preheatLastTime"`
		} `json:"returnStatus"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%w: decoding fryer status: %w", ErrAPIResponse, err)
	}
	st := result.ReturnStatus

	f.CookStatus = st.CookStatus
	if f.CookStatus == CookStandby {
		f.resetCookState()
		return nil
	}

	f.Preheat = st.PreheatLastTime > 0 ||
		st.CookStatus == CookHeating || st.CookStatus == CookPreheatStop || st.CookStatus == CookPreheatEnd
	f.CurrentTemp = st.CurrentTemp
	if st.TargetTemp > 0 {
		f.CookSetTemp = st.TargetTemp
	} else {
		f.CookSetTemp = st.CookSetTemp
	}
	f.CookSetTime = st.CookSetTime
	f.CookLastTime = st.CookLastTime
	f.PreheatSetTime = st.PreheatSetTime
	f.PreheatLastTime = st.PreheatLastTime
	if st.TempUnit != "" {
		f.TempUnit = normalizeTempUnit(st.TempUnit)
	}

	switch f.CookStatus {
	case CookPreheatEnd:
		f.PreheatLastTime = 0
	case CookCooking, CookStopped, CookEnded:
		f.Preheat = false
		f.PreheatSetTime = 0
		f.PreheatLastTime = 0
	}
	if f.CookStatus == CookCooking || f.CookStatus == CookHeating {
		f.DeviceStatus = StatusOn
	} else {
		f.DeviceStatus = StatusOff
	}
	return nil
}

func (f *AirFryer) resetCookState() {
	f.CookStatus = CookStandby
	f.Preheat = false
	f.CurrentTemp = 0
	f.CookSetTemp = 0
	f.CookSetTime = 0
	f.CookLastTime = 0
	f.PreheatSetTime = 0
	f.PreheatLastTime = 0
	f.DeviceStatus = StatusOff
}

// normalizeTempUnit maps the firmware's single letter units to names.
func normalizeTempUnit(unit string) string {
	switch unit {
	case "f", "F", TempFahrenheit:
		return TempFahrenheit
	case "c", "C", TempCelsius:
		return TempCelsius
	}
	return TempFahrenheit
}

// validateTemp checks a target temperature against the current unit.
// Fahrenheit accepts 200-400, celsius 75-205.
func (f *AirFryer) validateTemp(temp int) error {
	switch f.TempUnit {
	case TempCelsius:
		if temp < 75 || temp > 205 {
			return fmt.Errorf("%w: temperature %d°C", ErrOutOfRange, temp)
		}
	default:
		if temp < 200 || temp > 400 {
			return fmt.Errorf("%w: temperature %d°F", ErrOutOfRange, temp)
		}
	}
	return nil
}

// cookCommand returns the base cookMode/preheat command fields.
func (f *AirFryer) cookCommand() map[string]any {
	return map[string]any{
		"mode":          fryerCookMode,
		"accountId":     f.client().AccountID(),
		"appointmentTs": 0,
		"recipeId":      fryerRecipeID,
		"readyStart":    f.readyStart,
		"recipeType":    fryerRecipeType,
		"customRecipe":  fryerCustomRecipe,
	}
}

// Cook starts a manual cook at the given temperature for the given
// number of minutes.
func (f *AirFryer) Cook(ctx context.Context, temp, minutes int) error {
	if err := f.validateTemp(temp); err != nil {
		return err
	}
	if minutes <= 0 {
		return fmt.Errorf("%w: cook time %d", ErrOutOfRange, minutes)
	}
	cmd := f.cookCommand()
	cmd["cookSetTemp"] = temp
	cmd["cookSetTime"] = minutes * 60
	cmd["cookStatus"] = CookCooking
	if _, err := f.command(ctx, map[string]any{"cookMode": cmd}); err != nil {
		return fmt.Errorf("starting cook: %w", err)
	}
	f.Preheat = false
	f.CookStatus = CookCooking
	f.CookSetTemp = temp
	f.CookSetTime = minutes * 60
	f.DeviceStatus = StatusOn
	return nil
}

// SetPreheat starts a preheat cycle at the target temperature, with the
// cook time to run once preheat completes.
func (f *AirFryer) SetPreheat(ctx context.Context, temp, cookMinutes int) error {
	switch f.CookStatus {
	case CookStandby, CookEnded, CookPreheatEnd:
	default:
		return fmt.Errorf("%w: preheat while %s", ErrUnsupported, f.CookStatus)
	}
	if err := f.validateTemp(temp); err != nil {
		return err
	}
	cmd := f.cookCommand()
	cmd["preheatSetTime"] = 5
	cmd["preheatStatus"] = CookHeating
	cmd["targetTemp"] = temp
	cmd["cookSetTime"] = cookMinutes * 60
	if _, err := f.command(ctx, map[string]any{"preheat": cmd}); err != nil {
		return fmt.Errorf("starting preheat: %w", err)
	}
	f.Preheat = true
	f.CookStatus = CookHeating
	f.CookSetTemp = temp
	f.CookSetTime = cookMinutes * 60
	f.DeviceStatus = StatusOn
	return nil
}

// CookFromPreheat starts the queued cook once preheat has finished.
func (f *AirFryer) CookFromPreheat(ctx context.Context) error {
	if !f.Preheat || f.CookStatus != CookPreheatEnd {
		return fmt.Errorf("%w: cook from preheat while %s", ErrUnsupported, f.CookStatus)
	}
	cmd := map[string]any{
		"mode":       fryerCookMode,
		"accountId":  f.client().AccountID(),
		"cookStatus": CookCooking,
	}
	if _, err := f.command(ctx, map[string]any{"cookMode": cmd}); err != nil {
		return fmt.Errorf("starting cook from preheat: %w", err)
	}
	f.Preheat = false
	f.CookStatus = CookCooking
	f.DeviceStatus = StatusOn
	return nil
}

// Pause stops an in-progress cook or preheat, keeping the remaining time.
func (f *AirFryer) Pause(ctx context.Context) error {
	if f.CookStatus != CookCooking && f.CookStatus != CookHeating {
		return fmt.Errorf("%w: pause while %s", ErrUnsupported, f.CookStatus)
	}
	var cmd map[string]any
	if f.Preheat {
		cmd = map[string]any{"preheat": map[string]any{"preheatStatus": "stop"}}
	} else {
		cmd = map[string]any{"cookMode": map[string]any{"cookStatus": "stop"}}
	}
	if _, err := f.command(ctx, cmd); err != nil {
		return fmt.Errorf("pausing fryer: %w", err)
	}
	if f.Preheat {
		f.CookStatus = CookPreheatStop
	} else {
		f.CookStatus = CookStopped
	}
	return nil
}

// Resume continues a paused cook or preheat.
func (f *AirFryer) Resume(ctx context.Context) error {
	if f.CookStatus != CookStopped && f.CookStatus != CookPreheatStop {
		return fmt.Errorf("%w: resume while %s", ErrUnsupported, f.CookStatus)
	}
	var cmd map[string]any
	if f.Preheat {
		cmd = map[string]any{"preheat": map[string]any{"preheatStatus": CookHeating}}
	} else {
		cmd = map[string]any{"cookMode": map[string]any{"cookStatus": CookCooking}}
	}
	if _, err := f.command(ctx, cmd); err != nil {
		return fmt.Errorf("resuming fryer: %w", err)
	}
	if f.Preheat {
		f.CookStatus = CookHeating
	} else {
		f.CookStatus = CookCooking
	}
	f.DeviceStatus = StatusOn
	return nil
}

// End aborts the running or paused cycle and returns the fryer to standby.
func (f *AirFryer) End(ctx context.Context) error {
	var cmd map[string]any
	switch {
	case !f.Preheat && (f.CookStatus == CookStopped || f.CookStatus == CookCooking):
		cmd = map[string]any{"cookMode": map[string]any{"cookStatus": "end"}}
	case f.Preheat && (f.CookStatus == CookPreheatStop || f.CookStatus == CookHeating):
		cmd = map[string]any{"preheat": map[string]any{"cookStatus": "end"}}
	default:
		return fmt.Errorf("%w: end while %s", ErrUnsupported, f.CookStatus)
	}
	if _, err := f.command(ctx, cmd); err != nil {
		return fmt.Errorf("ending fryer cycle: %w", err)
	}
	f.resetCookState()
	return nil
}

// TurnOn is not meaningful for the fryer; cooking starts with Cook or
// SetPreheat.
func (f *AirFryer) TurnOn(ctx context.Context) error {
	return fmt.Errorf("%w: use Cook or SetPreheat to start the fryer", ErrUnsupported)
}

// TurnOff aborts any running cycle.
func (f *AirFryer) TurnOff(ctx context.Context) error {
	if f.CookStatus == CookStandby {
		return nil
	}
	return f.End(ctx)
}

// IsRunning reports whether the fryer is actively cooking or preheating.
func (f *AirFryer) IsRunning() bool {
	return f.CookStatus == CookCooking || f.CookStatus == CookHeating
}

func (f *AirFryer) Details() map[string]any {
	d := f.baseDetails()
	d["cook_status"] = f.CookStatus
	d["temp_unit"] = f.TempUnit
	d["preheat"] = f.Preheat
	d["current_temp"] = f.CurrentTemp
	d["cook_set_temp"] = f.CookSetTemp
	d["cook_set_time"] = f.CookSetTime
	d["cook_last_time"] = f.CookLastTime
	return d
}
