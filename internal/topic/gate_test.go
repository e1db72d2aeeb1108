package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInDomain(t *testing.T) {
	g := NewGate()

	cases := []struct {
		msg  string
		want bool
	}{
		{"como cuido un cactus", true},
		{"¿Cómo cuido una orquídea?", true},
		{"que plantas son buenas para interior", true},
		{"por que se ponen amarillas las hojas", true},
		{"cada cuanto debo regar mis plantas", true},
		{"mi monstera tiene manchas", true},
		{"tengo araña roja en el balcón", true},
		{"¿Qué es el sustrato?", true},
		{"que es la fotosintesis", true},
		{"que es una metafora", false},
		{"¿Qué es una hoja de cálculo?", false},
		{"cual es la capital de francia", false},
		{"what is a monad", false},
		{"¿Cuál es la mejor planta para interior?", true},
		{"¿Qué es mejor para una planta, luz o sombra?", true},
		{"¿Qué es lo mejor para mis plantas?", true},
		{"¿Qué significa esqueje?", true},
		{"que significa la palabra ubuntu", false},
		{"define recursion", false},
		{"what are succulents", true},
		{"what is the best soil for a fern", true},
		{"solo dime un chiste", false},
		{"", false},
		{"¿?", false},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.want, g.IsInDomain(tc.msg))
		})
	}
}
