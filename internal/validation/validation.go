package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"iot-telemetry-backend/internal/model"
	"iot-telemetry-backend/internal/parse"
)

// Accepted temperature range in degrees Celsius, inclusive.
const (
	MinTemperature = -50.0
	MaxTemperature = 150.0
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("device_status", func(fl validator.FieldLevel) bool {
		return model.DeviceStatus(fl.Field().String()).Valid()
	})
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DeviceIDChecker is the registry lookup needed for uniqueness checks.
type DeviceIDChecker interface {
	DeviceIDTaken(ctx context.Context, deviceID string, excludeID int64) (bool, error)
}

// CreateDeviceRequest is the body of POST /devices/.
type CreateDeviceRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	DeviceID      string          `json:"device_id" validate:"required,max=100"`
	Status        string          `json:"status" validate:"omitempty,device_status"`
	Location      *string         `json:"location" validate:"omitempty,max=200"`
	Configuration json.RawMessage `json:"configuration"`
}

// UpdateDeviceRequest is the body of PUT /devices/{id}/. Absent fields are left unchanged.
type UpdateDeviceRequest struct {
	Name          *string         `json:"name" validate:"omitempty,min=1,max=100"`
	DeviceID      *string         `json:"device_id" validate:"omitempty,min=1,max=100"`
	Status        *string         `json:"status" validate:"omitempty,device_status"`
	Location      *string         `json:"location" validate:"omitempty,max=200"`
	Configuration json.RawMessage `json:"configuration"`
}

// CreateEventRequest is the body of POST /events/.
type CreateEventRequest struct {
	Device      *int64     `json:"device" validate:"required"`
	Temperature *float64   `json:"temperature" validate:"required"`
	EventTime   *string    `json:"event_time" validate:"required"`
}

// Struct runs the tag rules on req and converts failures to an *Error.
func Struct(req any) *Error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewError("non_field_errors", err.Error())
	}
	verr := &Error{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "min":
		return MsgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "device_status":
		return MsgInvalidStatus
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed the %q rule.", fe.Tag())
	}
}

// Configuration parses a raw configuration document, reporting problems
// under the "configuration" field.
func Configuration(raw json.RawMessage) (model.Configuration, *Error) {
	cfg, err := model.ParseConfiguration(raw)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, model.ErrThresholdNotNumber) {
		return model.Configuration{}, NewError("configuration", MsgThresholdNotNumber)
	}
	return model.Configuration{}, NewError("configuration", MsgConfigurationNotObject)
}

// DeviceCreate validates req and builds the device to insert.
func DeviceCreate(ctx context.Context, devices DeviceIDChecker, req CreateDeviceRequest) (*model.Device, error) {
	verr := &Error{}
	verr.Merge(Struct(req))

	cfg, cfgErr := Configuration(req.Configuration)
	verr.Merge(cfgErr)

	if _, bad := verr.Fields["device_id"]; !bad {
		taken, err := devices.DeviceIDTaken(ctx, req.DeviceID, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			verr.Add("device_id", MsgDeviceIDTaken)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	status := model.StatusOffline
	if req.Status != "" {
		status = model.DeviceStatus(req.Status)
	}
	return &model.Device{
		Name:          req.Name,
		DeviceID:      req.DeviceID,
		Status:        status,
		Location:      req.Location,
		Configuration: datatypes.NewJSONType(cfg),
	}, nil
}

// DeviceUpdate validates a partial update and applies it to d in place.
// d is left untouched when validation fails.
func DeviceUpdate(ctx context.Context, devices DeviceIDChecker, d *model.Device, req UpdateDeviceRequest) error {
	verr := &Error{}
	verr.Merge(Struct(req))

	var cfg model.Configuration
	hasCfg := len(req.Configuration) > 0
	if hasCfg {
		var cfgErr *Error
		cfg, cfgErr = Configuration(req.Configuration)
		verr.Merge(cfgErr)
	}

	if _, bad := verr.Fields["device_id"]; !bad && req.DeviceID != nil && *req.DeviceID != d.DeviceID {
		taken, err := devices.DeviceIDTaken(ctx, *req.DeviceID, d.ID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("device_id", MsgDeviceIDTaken)
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.DeviceID != nil {
		d.DeviceID = *req.DeviceID
	}
	if req.Status != nil {
		d.Status = model.DeviceStatus(*req.Status)
	}
	if req.Location != nil {
		d.Location = req.Location
	}
	if hasCfg {
		d.Configuration = datatypes.NewJSONType(cfg)
	}
	return nil
}

// EventRequest checks that every field of an event body is present and
// returns the parsed event_time. Timestamps without an offset are UTC.
func EventRequest(req CreateEventRequest) (time.Time, error) {
	verr := &Error{}
	verr.Merge(Struct(req))
	var eventTime time.Time
	if req.EventTime != nil {
		t, err := parse.TimeBound(*req.EventTime)
		if err != nil {
			verr.Add("event_time", MsgDatetimeFormat)
		}
		eventTime = t
	}
	if err := verr.OrNil(); err != nil {
		return time.Time{}, err
	}
	return eventTime, nil
}

// CheckEvent applies the rules every event write must pass: the device is
// online, the temperature is in range and the event is not in the future.
func CheckEvent(device *model.Device, temperature float64, eventTime, now time.Time) error {
	verr := &Error{}
	verr.Merge(CheckReading(temperature, eventTime, now))
	if device.Status != model.StatusOnline {
		verr.Add("device", fmt.Sprintf("Device %s is currently offline.", device.Name))
	}
	return verr.OrNil()
}

// CheckReading applies the device-independent event rules. NaN is outside
// the range.
func CheckReading(temperature float64, eventTime, now time.Time) *Error {
	verr := &Error{}
	if !(temperature >= MinTemperature && temperature <= MaxTemperature) {
		verr.Add("temperature", MsgTemperatureRange)
	}
	if eventTime.After(now) {
		verr.Add("event_time", MsgEventTimeFuture)
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}
