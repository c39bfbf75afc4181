package bands

import "fmt"

// Значения параметров по умолчанию
const (
	// DefaultVolumePeriod период EMA объема и произведений цена*объем
	DefaultVolumePeriod = 180
	// DefaultDeviationPeriod окно стандартного отклонения процентных отклонений
	DefaultDeviationPeriod = 1440

	DefaultUpperMultiplier1 = 2.25
	DefaultUpperMultiplier2 = 4.25
	DefaultLowerMultiplier1 = 2.25
	// DefaultLowerFactor2Multiplier совпадает с DefaultLowerMultiplier1, а не с
	// DefaultUpperMultiplier2, поэтому b2 равна b1, пока множитель не задан явно.
	DefaultLowerFactor2Multiplier = 2.25
)

// StdevMode способ расчета скользящего стандартного отклонения
type StdevMode string

const (
	// StdevDirect пересчитывает каждое окно заново
	StdevDirect StdevMode = "direct"
	// StdevRolling использует накопленные суммы (O(n))
	StdevRolling StdevMode = "rolling"
)

// Params настраиваемые параметры расчета полос
type Params struct {
	VolumePeriod           int
	DeviationPeriod        int
	UpperMultiplier1       float64
	UpperMultiplier2       float64
	LowerMultiplier1       float64
	LowerFactor2Multiplier float64
	StdevMode              StdevMode
}

// DefaultParams возвращает параметры по умолчанию
func DefaultParams() Params {
	return Params{
		VolumePeriod:           DefaultVolumePeriod,
		DeviationPeriod:        DefaultDeviationPeriod,
		UpperMultiplier1:       DefaultUpperMultiplier1,
		UpperMultiplier2:       DefaultUpperMultiplier2,
		LowerMultiplier1:       DefaultLowerMultiplier1,
		LowerFactor2Multiplier: DefaultLowerFactor2Multiplier,
		StdevMode:              StdevDirect,
	}
}

// Validate проверяет параметры. Ошибки здесь - ошибки конфигурации,
// сам расчет ошибок не возвращает.
func (p Params) Validate() error {
	if p.VolumePeriod < 1 {
		return fmt.Errorf("период EMA объема должен быть >= 1: %d", p.VolumePeriod)
	}
	if p.DeviationPeriod < 1 {
		return fmt.Errorf("период стандартного отклонения должен быть >= 1: %d", p.DeviationPeriod)
	}
	switch p.StdevMode {
	case "", StdevDirect, StdevRolling:
	default:
		return fmt.Errorf("неизвестный режим стандартного отклонения: %q", p.StdevMode)
	}
	return nil
}
