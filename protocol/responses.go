package protocol

import "encoding/binary"

// Response is a decoded chip response.
type Response interface {
	// Opcode returns the echoed command byte
	Opcode() byte

	// StatusCode returns the status byte; StatusSuccess means the command succeeded
	StatusCode() byte
}

// EmptyResponse answers every set command; only the header is meaningful.
type EmptyResponse struct {
	Header ResponseHeader
}

func (r *EmptyResponse) Opcode() byte     { return r.Header.Command }
func (r *EmptyResponse) StatusCode() byte { return r.Header.Status }

// ChipSettingsResponse answers Get Chip Settings and Get NVRAM chip settings.
type ChipSettingsResponse struct {
	Header   ResponseHeader
	Settings ChipSettings
}

func (r *ChipSettingsResponse) Opcode() byte     { return r.Header.Command }
func (r *ChipSettingsResponse) StatusCode() byte { return r.Header.Status }

// SPISettingsResponse answers Get SPI Settings and Get NVRAM SPI settings.
type SPISettingsResponse struct {
	Header   ResponseHeader
	Settings SPISettings
}

func (r *SPISettingsResponse) Opcode() byte     { return r.Header.Command }
func (r *SPISettingsResponse) StatusCode() byte { return r.Header.Status }

// USBSettingsResponse answers Get NVRAM USB settings.
type USBSettingsResponse struct {
	Header   ResponseHeader
	Settings USBSettings
}

func (r *USBSettingsResponse) Opcode() byte     { return r.Header.Command }
func (r *USBSettingsResponse) StatusCode() byte { return r.Header.Status }

// USBStringResponse answers Get NVRAM manufacturer and product string.
type USBStringResponse struct {
	Header       ResponseHeader
	Length       byte
	DescriptorID byte
	Value        string
}

func (r *USBStringResponse) Opcode() byte     { return r.Header.Command }
func (r *USBStringResponse) StatusCode() byte { return r.Header.Status }

// GPIOResponse answers Get GPIO Direction and Get GPIO Value.
type GPIOResponse struct {
	Header ResponseHeader
	Mask   uint16
}

func (r *GPIOResponse) Opcode() byte     { return r.Header.Command }
func (r *GPIOResponse) StatusCode() byte { return r.Header.Status }

// ReadEEPROMResponse answers Read EEPROM.
type ReadEEPROMResponse struct {
	Header EEPROMResponseHeader
	Data   byte
}

func (r *ReadEEPROMResponse) Opcode() byte     { return r.Header.Command }
func (r *ReadEEPROMResponse) StatusCode() byte { return r.Header.Status }

// SPITransferResponse answers SPI Transfer.
type SPITransferResponse struct {
	Header SPITransferResponseHeader
	Data   []byte
}

func (r *SPITransferResponse) Opcode() byte     { return r.Header.Command }
func (r *SPITransferResponse) StatusCode() byte { return r.Header.Status }

// EngineStatus returns the SPI engine state (EngineFinished, EngineStarted, EnginePending).
func (r *SPITransferResponse) EngineStatus() byte { return r.Header.EngineStatus }

// DeviceStatusResponse answers Cancel Transfer and Get Chip Status.
type DeviceStatusResponse struct {
	Header StatusHeader
	Status DeviceStatus
}

func (r *DeviceStatusResponse) Opcode() byte     { return r.Header.Command }
func (r *DeviceStatusResponse) StatusCode() byte { return r.Header.Status }

// DecodeResponse decodes a report into the response layout named by kind.
// The report must be at least ReportSize bytes; trailing bytes are ignored.
// It does not check the status byte; callers map non-zero status to DeviceError.
func DecodeResponse(report []byte, kind ResponseKind) (Response, error) {
	if len(report) < ReportSize {
		return nil, decodeErrorf(kind, "report too short: got %d bytes, expected %d", len(report), ReportSize)
	}

	switch kind {
	case ResponseEmpty:
		return ParseEmptyResponse(report)
	case ResponseChipSettings:
		return ParseChipSettingsResponse(report)
	case ResponseSPISettings:
		return ParseSPISettingsResponse(report)
	case ResponseUSBSettings:
		return ParseUSBSettingsResponse(report)
	case ResponseUSBString:
		return ParseUSBStringResponse(report)
	case ResponseGPIO:
		return ParseGPIOResponse(report)
	case ResponseEEPROM:
		return ParseReadEEPROMResponse(report)
	case ResponseSPITransfer:
		return ParseSPITransferResponse(report)
	case ResponseDeviceStatus:
		return ParseDeviceStatusResponse(report)
	default:
		return nil, decodeErrorf(kind, "unknown response kind")
	}
}

func checkLen(report []byte, kind ResponseKind, need int) error {
	if len(report) < need {
		return decodeErrorf(kind, "report too short: got %d bytes, need %d", len(report), need)
	}
	return nil
}

// ParseEmptyResponse parses a header-only response.
//
// Data format:
//
//	[CMD][STATUS][SUB][RESERVED]
func ParseEmptyResponse(report []byte) (*EmptyResponse, error) {
	if err := checkLen(report, ResponseEmpty, HeaderSize); err != nil {
		return nil, err
	}
	return &EmptyResponse{Header: parseResponseHeader(report)}, nil
}

// ParseChipSettingsResponse parses a chip settings response.
//
// Data format:
//
//	[CMD][STATUS][SUB][RESERVED][PINS(9)][OUT(2)][DIR(2)][OTHER][ACCESS][PASSWORD(8)]
func ParseChipSettingsResponse(report []byte) (*ChipSettingsResponse, error) {
	if err := checkLen(report, ResponseChipSettings, HeaderSize+chipSettingsSize); err != nil {
		return nil, err
	}
	resp := &ChipSettingsResponse{Header: parseResponseHeader(report)}
	resp.Settings.unmarshal(report[HeaderSize:])
	return resp, nil
}

// ParseSPISettingsResponse parses an SPI settings response.
//
// Data format:
//
//	[CMD][STATUS][SUB][RESERVED][BITRATE(4)][IDLE_CS(2)][ACTIVE_CS(2)][CS_DATA(2)][DATA_CS(2)][BYTE_DELAY(2)][SIZE(2)][MODE]
func ParseSPISettingsResponse(report []byte) (*SPISettingsResponse, error) {
	if err := checkLen(report, ResponseSPISettings, HeaderSize+spiSettingsSize); err != nil {
		return nil, err
	}
	resp := &SPISettingsResponse{Header: parseResponseHeader(report)}
	resp.Settings.unmarshal(report[HeaderSize:])
	return resp, nil
}

// ParseUSBSettingsResponse parses a Get NVRAM USB settings response.
// The fields sit at fixed offsets with reserved bytes between them:
//
//	[0-3 header][4-11 reserved][12-13 VID][14-15 PID][16-28 reserved][29 POWER][30 CURRENT]
func ParseUSBSettingsResponse(report []byte) (*USBSettingsResponse, error) {
	if err := checkLen(report, ResponseUSBSettings, usbRespCurrentOffset+1); err != nil {
		return nil, err
	}
	return &USBSettingsResponse{
		Header: parseResponseHeader(report),
		Settings: USBSettings{
			VID:            binary.LittleEndian.Uint16(report[usbRespVIDOffset:]),
			PID:            binary.LittleEndian.Uint16(report[usbRespPIDOffset:]),
			PowerOption:    report[usbRespPowerOffset],
			CurrentRequest: report[usbRespCurrentOffset],
		},
	}, nil
}

// ParseUSBStringResponse parses a USB string response.
//
// Data format:
//
//	[CMD][STATUS][SUB][RESERVED][STR_LEN][0x03][UTF16LE...]
//
// STR_LEN counts the two descriptor bytes plus the UTF-16 bytes, so a value
// of 2 is the empty string. Values below 2, odd payload lengths and payloads
// running past the report are rejected.
func ParseUSBStringResponse(report []byte) (*USBStringResponse, error) {
	if err := checkLen(report, ResponseUSBString, HeaderSize+2); err != nil {
		return nil, err
	}
	strLen := report[HeaderSize]
	if strLen < 2 {
		return nil, decodeErrorf(ResponseUSBString, "string length %d is below the descriptor header size 2", strLen)
	}
	n := int(strLen) - 2
	if n%2 != 0 {
		return nil, decodeErrorf(ResponseUSBString, "string length %d is not a whole number of UTF-16 code units", strLen)
	}
	start := HeaderSize + 2
	if start+n > len(report) || n/2 > MaxStringUnits {
		return nil, decodeErrorf(ResponseUSBString, "string length %d exceeds the report", strLen)
	}
	value, err := decodeUSBString(report[start : start+n])
	if err != nil {
		return nil, decodeErrorf(ResponseUSBString, "invalid UTF-16 data: %v", err)
	}
	return &USBStringResponse{
		Header:       parseResponseHeader(report),
		Length:       strLen,
		DescriptorID: report[HeaderSize+1],
		Value:        value,
	}, nil
}

// ParseGPIOResponse parses a GPIO direction or value response.
//
// Data format:
//
//	[CMD][STATUS][SUB][RESERVED][MASK_L][MASK_H]
func ParseGPIOResponse(report []byte) (*GPIOResponse, error) {
	if err := checkLen(report, ResponseGPIO, HeaderSize+2); err != nil {
		return nil, err
	}
	return &GPIOResponse{
		Header: parseResponseHeader(report),
		Mask:   binary.LittleEndian.Uint16(report[HeaderSize:]),
	}, nil
}

// ParseReadEEPROMResponse parses a Read EEPROM response.
//
// Data format:
//
//	[0x50][STATUS][ADDRESS][DATA]
func ParseReadEEPROMResponse(report []byte) (*ReadEEPROMResponse, error) {
	if err := checkLen(report, ResponseEEPROM, 4); err != nil {
		return nil, err
	}
	return &ReadEEPROMResponse{
		Header: EEPROMResponseHeader{
			Command: report[0],
			Status:  report[1],
			Address: report[2],
		},
		Data: report[3],
	}, nil
}

// ParseSPITransferResponse parses an SPI Transfer response.
// The returned data is a copy of the LEN received bytes.
//
// Data format:
//
//	[0x42][STATUS][LEN][ENGINE_STATUS][DATA(LEN)]
func ParseSPITransferResponse(report []byte) (*SPITransferResponse, error) {
	if err := checkLen(report, ResponseSPITransfer, HeaderSize); err != nil {
		return nil, err
	}
	n := int(report[2])
	if n > MaxSPIChunk || HeaderSize+n > len(report) {
		return nil, decodeErrorf(ResponseSPITransfer, "data length %d exceeds maximum %d", n, MaxSPIChunk)
	}
	data := make([]byte, n)
	copy(data, report[HeaderSize:HeaderSize+n])
	return &SPITransferResponse{
		Header: SPITransferResponseHeader{
			Command:      report[0],
			Status:       report[1],
			Length:       report[2],
			EngineStatus: report[3],
		},
		Data: data,
	}, nil
}

// ParseDeviceStatusResponse parses a Cancel Transfer or Get Chip Status response.
//
// Data format:
//
//	[CMD][STATUS][BUS_RELEASE][BUS_OWNER][PW_ATTEMPTS][PW_GUESSED]
func ParseDeviceStatusResponse(report []byte) (*DeviceStatusResponse, error) {
	if err := checkLen(report, ResponseDeviceStatus, 6); err != nil {
		return nil, err
	}
	return &DeviceStatusResponse{
		Header: StatusHeader{Command: report[0], Status: report[1]},
		Status: DeviceStatus{
			BusReleaseStatus: report[2],
			BusOwner:         report[3],
			PasswordAttempts: report[4],
			PasswordGuessed:  report[5] != 0,
		},
	}, nil
}
