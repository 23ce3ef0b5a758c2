package model

import "fmt"

// Order is the (p, d, q) order of an ARIMA error process.
type Order struct {
	P int `yaml:"p"`
	D int `yaml:"d"`
	Q int `yaml:"q"`
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// FittedModel holds the parameters of a regression with ARIMA errors:
//
//	y[t] = Intercept + X[t]·Beta + u[t]
//	u[t] = AR·u[t-1..t-p] + e[t] + MA·e[t-1..t-q]
//
// with y and X differenced D times.
type FittedModel struct {
	Order     Order
	Exog      []string
	Intercept float64
	Beta      []float64
	AR        []float64
	MA        []float64
	Sigma2    float64
	LogLik    float64
	AIC       float64
	NObs      int
}

// Coefficient is a named model parameter.
type Coefficient struct {
	Name  string
	Value float64
}

// Coefficients lists every estimated parameter with a readable name.
func (m *FittedModel) Coefficients() []Coefficient {
	out := []Coefficient{{Name: "const", Value: m.Intercept}}
	for i, b := range m.Beta {
		name := fmt.Sprintf("x%d", i+1)
		if i < len(m.Exog) {
			name = m.Exog[i]
		}
		out = append(out, Coefficient{Name: name, Value: b})
	}
	for i, a := range m.AR {
		out = append(out, Coefficient{Name: fmt.Sprintf("ar.L%d", i+1), Value: a})
	}
	for i, t := range m.MA {
		out = append(out, Coefficient{Name: fmt.Sprintf("ma.L%d", i+1), Value: t})
	}
	out = append(out, Coefficient{Name: "sigma2", Value: m.Sigma2})
	return out
}
