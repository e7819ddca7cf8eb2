package local

import (
	"fmt"
	"strconv"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// Пути встроенных блоков.
const (
	PathConstantSource = "/blocks/constant_source"
	PathMultiply       = "/blocks/multiply"
	PathTee            = "/blocks/tee"
	PathSink           = "/blocks/sink"
	PathSlider         = "/widgets/slider"
)

func floatPort(name string) domain.PortInfo {
	return domain.PortInfo{Name: name, DType: "float"}
}

func slotPort(name string) domain.PortInfo {
	return domain.PortInfo{Name: name, IsSigSlot: true}
}

// constantSourceFactory — источник постоянного значения.
func constantSourceFactory() Factory {
	return FactoryFunc{
		Description: domain.BlockDesc{
			Path: PathConstantSource,
			Name: "Constant Source",
			Calls: []domain.CallDesc{
				{Type: domain.CallTypeSetter, Name: "setConstant", Args: []string{"constant"}},
			},
			Params: []domain.ParamDesc{
				{Key: "constant", Name: "Constant", Default: "0.0", DType: "float"},
			},
		},
		Constructor: func(args []any) (*Block, error) {
			b := NewBlock(PathConstantSource, nil, []domain.PortInfo{floatPort("0")})
			b.Setter("setConstant", "constant", "float")
			return b, nil
		},
	}
}

// multiplyFactory — умножение потока на коэффициент.
func multiplyFactory() Factory {
	return FactoryFunc{
		Description: domain.BlockDesc{
			Path: PathMultiply,
			Name: "Multiply",
			Calls: []domain.CallDesc{
				{Type: domain.CallTypeSetter, Name: "setFactor", Args: []string{"factor"}},
			},
			Params: []domain.ParamDesc{
				{Key: "factor", Name: "Factor", Default: "1.0", DType: "float"},
			},
		},
		Constructor: func(args []any) (*Block, error) {
			b := NewBlock(PathMultiply,
				[]domain.PortInfo{floatPort("0"), slotPort("setFactor")},
				[]domain.PortInfo{floatPort("0")},
			)
			b.Setter("setFactor", "factor", "float")
			return b, nil
		},
	}
}

// teeFactory — размножение входа на N выходов.
func teeFactory() Factory {
	return FactoryFunc{
		Description: domain.BlockDesc{
			Path: PathTee,
			Name: "Tee",
			Args: []string{"numOutputs"},
			Params: []domain.ParamDesc{
				{Key: "numOutputs", Name: "Outputs", Default: "2", DType: "int"},
			},
		},
		Constructor: func(args []any) (*Block, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%w: expected numOutputs", ErrBadArgument)
			}
			n, err := Convert(args[0], "int")
			if err != nil {
				return nil, fmt.Errorf("numOutputs: %w", err)
			}
			if n.(int) < 1 {
				return nil, fmt.Errorf("%w: numOutputs must be positive, got %d", ErrBadArgument, n)
			}
			outputs := make([]domain.PortInfo, n.(int))
			for i := range outputs {
				outputs[i] = floatPort(strconv.Itoa(i))
			}
			b := NewBlock(PathTee, []domain.PortInfo{floatPort("0")}, outputs)
			b.Set("numOutputs", n)
			return b, nil
		},
	}
}

// sinkFactory — приёмник с подписью в overlay.
func sinkFactory() Factory {
	return FactoryFunc{
		Description: domain.BlockDesc{
			Path: PathSink,
			Name: "Sink",
			Calls: []domain.CallDesc{
				{Type: domain.CallTypeSetter, Name: "setLabel", Args: []string{"label"}},
			},
			Params: []domain.ParamDesc{
				{Key: "label", Name: "Label", Default: `"sink"`, DType: "string"},
			},
		},
		Constructor: func(args []any) (*Block, error) {
			b := NewBlock(PathSink, []domain.PortInfo{floatPort("0")}, nil)
			b.Setter("setLabel", "label", "string")
			b.Overlay(func() map[string]any {
				label, _ := b.Get("label").(string)
				return map[string]any{"text": label}
			})
			return b, nil
		},
	}
}

// sliderFactory — виджет-ползунок на холсте.
func sliderFactory() Factory {
	return FactoryFunc{
		Description: domain.BlockDesc{
			Path: PathSlider,
			Name: "Slider",
			Mode: domain.ModeGraphWidget,
			Calls: []domain.CallDesc{
				{Type: domain.CallTypeInitializer, Name: "setRange", Args: []string{"minimum", "maximum"}},
				{Type: domain.CallTypeSetter, Name: "setValue", Args: []string{"value"}},
			},
			Params: []domain.ParamDesc{
				{Key: "minimum", Name: "Minimum", Default: "0.0", DType: "float"},
				{Key: "maximum", Name: "Maximum", Default: "1.0", DType: "float"},
				{Key: "value", Name: "Value", Default: "0.5", DType: "float"},
			},
		},
		Constructor: func(args []any) (*Block, error) {
			b := NewBlock(PathSlider, nil, []domain.PortInfo{slotPort("valueChanged")})
			b.Handle("setRange", func(args []any) (any, error) {
				if len(args) != 2 {
					return nil, fmt.Errorf("%w: setRange expects minimum and maximum", ErrBadArgument)
				}
				lo, err := Convert(args[0], "float")
				if err != nil {
					return nil, err
				}
				hi, err := Convert(args[1], "float")
				if err != nil {
					return nil, err
				}
				if lo.(float64) > hi.(float64) {
					return nil, fmt.Errorf("%w: minimum %v greater than maximum %v", ErrBadArgument, lo, hi)
				}
				b.Set("minimum", lo)
				b.Set("maximum", hi)
				return nil, nil
			})
			b.Handle("setValue", func(args []any) (any, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("%w: setValue expects value", ErrBadArgument)
				}
				v, err := Convert(args[0], "float")
				if err != nil {
					return nil, err
				}
				lo, _ := b.Get("minimum").(float64)
				hi, _ := b.Get("maximum").(float64)
				if v.(float64) < lo || v.(float64) > hi {
					return nil, fmt.Errorf("%w: value %v outside [%v, %v]", ErrBadArgument, v, lo, hi)
				}
				b.Set("value", v)
				return nil, nil
			})
			return b, nil
		},
	}
}
