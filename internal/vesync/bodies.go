package vesync

// Request body builders for the cloud API.
//
// Every endpoint takes a JSON body carrying the app identity fields plus,
// for authenticated calls, the session token and account ID. The builders
// here keep those envelopes in one place so device code only fills in the
// fields that vary.

// baseRequest carries the app identity fields sent with every call.
type baseRequest struct {
	TimeZone       string `json:"timeZone"`
	AcceptLanguage string `json:"acceptLanguage"`
	AppVersion     string `json:"appVersion"`
	PhoneBrand     string `json:"phoneBrand"`
	PhoneOS        string `json:"phoneOS"`
	TraceID        string `json:"traceId"`
}

// authRequest extends baseRequest with session credentials.
type authRequest struct {
	baseRequest
	AccountID string `json:"accountID"`
	Token     string `json:"token"`
}

func (c *Client) newBaseRequest() baseRequest {
	return baseRequest{
		TimeZone:       c.timeZone,
		AcceptLanguage: "en",
		AppVersion:     appVersion,
		PhoneBrand:     phoneBrand,
		PhoneOS:        phoneOS,
		TraceID:        traceID(),
	}
}

func (c *Client) newAuthRequest() authRequest {
	return authRequest{
		baseRequest: c.newBaseRequest(),
		AccountID:   c.accountID,
		Token:       c.token,
	}
}

// loginRequest is the body for /cloud/v1/user/login.
type loginRequest struct {
	baseRequest
	Email    string `json:"email"`
	Password string `json:"password"`
	DevToken string `json:"devToken"`
	UserType string `json:"userType"`
	Method   string `json:"method"`
}

// deviceListRequest is the body for /cloud/v1/deviceManaged/devices.
type deviceListRequest struct {
	authRequest
	Method   string `json:"method"`
	PageNo   string `json:"pageNo"`
	PageSize string `json:"pageSize"`
}

// newDeviceListRequest builds the paged device list body. The cloud caps
// page size at 100; installations beyond that are not supported.
func (c *Client) newDeviceListRequest() deviceListRequest {
	return deviceListRequest{
		authRequest: c.newAuthRequest(),
		Method:      "devices",
		PageNo:      "1",
		PageSize:    "100",
	}
}

// detailRequest is the body for the per-family devicedetail endpoints.
// These endpoints identify the device by UUID rather than CID.
type detailRequest struct {
	authRequest
	Method   string `json:"method"`
	MobileID string `json:"mobileId"`
	UUID     string `json:"uuid,omitempty"`
}

func (c *Client) newDetailRequest(uuid string) detailRequest {
	return detailRequest{
		authRequest: c.newAuthRequest(),
		Method:      "devicedetail",
		MobileID:    mobileID,
		UUID:        uuid,
	}
}

// statusRequest is the body for the per-family devicestatus endpoints.
// Status calls omit the app identity fields except the token pair.
type statusRequest struct {
	AccountID string `json:"accountID"`
	Token     string `json:"token"`
	TimeZone  string `json:"timeZone"`
	UUID      string `json:"uuid,omitempty"`
	Status    string `json:"status,omitempty"`
	SwitchNo  string `json:"switchNo,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

func (c *Client) newStatusRequest(uuid, status string) statusRequest {
	return statusRequest{
		AccountID: c.accountID,
		Token:     c.token,
		TimeZone:  c.timeZone,
		UUID:      uuid,
		Status:    status,
	}
}

// brightnessRequest is the body for the dimmer and bulb brightness endpoints.
type brightnessRequest struct {
	authRequest
	UUID       string `json:"uuid"`
	Status     string `json:"status"`
	Brightness string `json:"brightness"`
}

// energyRequest is the body for the per-family energy history endpoints.
type energyRequest struct {
	authRequest
	Method   string `json:"method"`
	MobileID string `json:"mobileId"`
	UUID     string `json:"uuid,omitempty"`
}

func (c *Client) newEnergyRequest(uuid, method string) energyRequest {
	return energyRequest{
		authRequest: c.newAuthRequest(),
		Method:      method,
		MobileID:    mobileID,
		UUID:        uuid,
	}
}

// bypassV2Request is the body for /cloud/v2/deviceManaged/bypassV2.
type bypassV2Request struct {
	authRequest
	CID          string        `json:"cid"`
	ConfigModule string        `json:"configModule"`
	DeviceRegion string        `json:"deviceRegion"`
	DebugMode    bool          `json:"debugMode"`
	Method       string        `json:"method"`
	Payload      bypassPayload `json:"payload"`
}

// bypassPayload is the inner device command carried by bypassV2.
type bypassPayload struct {
	Data   map[string]any `json:"data"`
	Method string         `json:"method"`
	Source string         `json:"source"`
}

// bypassV1Request is the body for /cloud/v1/deviceManaged/bypass.
type bypassV1Request struct {
	authRequest
	CID          string         `json:"cid"`
	ConfigModule string         `json:"configModule"`
	DeviceRegion string         `json:"deviceRegion"`
	Method       string         `json:"method"`
	Debug        bool           `json:"debug"`
	JSONCmd      map[string]any `json:"jsonCmd"`
}
