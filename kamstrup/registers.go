package kamstrup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// RegisterId addresses one queryable value in the meter.
type RegisterId uint16

func (self RegisterId) Hi() byte       { return byte(self >> 8) }
func (self RegisterId) Lo() byte       { return byte(self & 0xff) }
func (self RegisterId) String() string { return fmt.Sprintf("0x%04x", uint16(self)) }

type Register struct {
	Id   RegisterId
	Name string
	Help string
}

// Registers is the Multical 402 register map. Order here is the
// canonical listing order for tooling, it does not constrain request
// order. Parameter names are the config-facing identifiers and must
// stay spelled exactly as below.
var Registers = []Register{
	{0x003C, "energy", "heat energy E1, GJ"},
	{0x0050, "power", "current power, kW"},
	{0x0056, "temp1", "inlet temperature, C"},
	{0x0057, "temp2", "outlet temperature, C"},
	{0x0059, "tempdiff", "temperature difference, C"},
	{0x004A, "flow", "water flow, l/h"},
	{0x0044, "volume", "water volume, m3"},
	{0x008D, "minflow_m", "minimum flow this month"},
	{0x008B, "maxflow_m", "maximum flow this month"},
	{0x008C, "minflowDate_m", "date of minimum flow this month"},
	{0x008A, "maxflowDate_m", "date of maximum flow this month"},
	{0x0091, "minpower_m", "minimum power this month"},
	{0x008F, "maxpower_m", "maximum power this month"},
	{0x0095, "avgtemp1_m", "average inlet temperature this month"},
	{0x0096, "avgtemp2_m", "average outlet temperature this month"},
	{0x0090, "minpowerdate_m", "date of minimum power this month"},
	{0x008E, "maxpowerdate_m", "date of maximum power this month"},
	{0x007E, "minflow_y", "minimum flow this year"},
	{0x007C, "maxflow_y", "maximum flow this year"},
	{0x007D, "minflowdate_y", "date of minimum flow this year"},
	{0x007B, "maxflowdate_y", "date of maximum flow this year"},
	{0x0082, "minpower_y", "minimum power this year"},
	{0x0080, "maxpower_y", "maximum power this year"},
	{0x0092, "avgtemp1_y", "average inlet temperature this year"},
	{0x0093, "avgtemp2_y", "average outlet temperature this year"},
	{0x0081, "minpowerdate_y", "date of minimum power this year"},
	{0x007F, "maxpowerdate_y", "date of maximum power this year"},
	{0x0061, "temp1xm3", "inlet temperature times volume"},
	{0x006E, "temp2xm3", "outlet temperature times volume"},
	{0x0071, "infoevent", "info event counter"},
	{0x03EC, "hourcounter", "operating hour counter"},
}

var (
	registerByName map[string]Register
	registerById   map[RegisterId]Register
)

func init() {
	registerByName = make(map[string]Register, len(Registers))
	registerById = make(map[RegisterId]Register, len(Registers))
	for _, r := range Registers {
		if _, ok := registerByName[r.Name]; ok {
			panic("kamstrup: duplicate register name " + r.Name)
		}
		if _, ok := registerById[r.Id]; ok {
			panic("kamstrup: duplicate register id " + r.Id.String())
		}
		registerByName[r.Name] = r
		registerById[r.Id] = r
	}
}

func RegisterByName(name string) (Register, bool) {
	r, ok := registerByName[name]
	return r, ok
}

func RegisterById(id RegisterId) (Register, bool) {
	r, ok := registerById[id]
	return r, ok
}

// RegistersByName maps configured parameter names to ids, preserving
// order. Unknown or repeated names are collected into one error.
func RegistersByName(names []string) ([]RegisterId, error) {
	ids := make([]RegisterId, 0, len(names))
	seen := make(map[string]bool, len(names))
	var bad []string
	for _, name := range names {
		r, ok := registerByName[name]
		if !ok {
			bad = append(bad, name)
			continue
		}
		if seen[name] {
			return nil, errors.Errorf("kamstrup: parameter %s repeated", name)
		}
		seen[name] = true
		ids = append(ids, r.Id)
	}
	if len(bad) > 0 {
		return nil, errors.Errorf("kamstrup: unknown parameters: %s (known: %s)",
			strings.Join(bad, ","), strings.Join(ParameterNames(), ","))
	}
	return ids, nil
}

// ParameterNames returns all known parameter names sorted, for error
// texts and CLI completion.
func ParameterNames() []string {
	names := make([]string, 0, len(Registers))
	for _, r := range Registers {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// unitNames is the KMP unit enumeration. Spelling is plain ASCII,
// index 36 is the meter's explicit "no unit".
var unitNames = map[byte]string{
	1:  "Wh",
	2:  "kWh",
	3:  "MWh",
	4:  "GWh",
	5:  "J",
	6:  "kJ",
	7:  "MJ",
	8:  "GJ",
	9:  "cal",
	10: "kcal",
	11: "Mcal",
	12: "Gcal",
	13: "varh",
	14: "kvarh",
	15: "Mvarh",
	16: "Gvarh",
	17: "VAh",
	18: "kVAh",
	19: "MVAh",
	20: "GVAh",
	21: "W",
	22: "kW",
	23: "MW",
	24: "var",
	25: "kvar",
	26: "Mvar",
	27: "VA",
	28: "kVA",
	29: "MVA",
	30: "V",
	31: "A",
	32: "kV",
	33: "kA",
	34: "Hz",
	35: "ppm",
	36: "",
	37: "C",
	38: "K",
	39: "l",
	40: "m3",
	41: "l/h",
	42: "m3/h",
	43: "m3xC",
	44: "ton",
	45: "ton/h",
	46: "h",
	47: "hh:mm:ss",
	48: "yy:mm:dd",
	49: "yyyy:mm:dd",
	50: "mm:dd",
	51: "",
	52: "bar",
	53: "RTC",
	54: "ASCII",
	55: "m3x10",
	56: "tonx10",
	57: "GJx10",
	58: "min",
	59: "bitfield",
	60: "s",
	61: "ms",
	62: "days",
	63: "RTC-Q",
	64: "datetime",
}

// UnitString resolves a wire unit code. ok=false means the code is
// outside the protocol enumeration.
func UnitString(code byte) (string, bool) {
	s, ok := unitNames[code]
	return s, ok
}

// Unit codes used in fixtures and commissioning output.
const (
	UnitGJ   byte = 8
	UnitKW   byte = 22
	UnitC    byte = 37
	UnitM3   byte = 40
	UnitLH   byte = 41
	UnitHour byte = 46
)
