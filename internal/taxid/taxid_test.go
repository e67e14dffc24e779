package taxid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "formatted cnpj", input: "11.222.333/0001-81", want: KindCNPJ},
		{name: "bare cnpj", input: "11222333000181", want: KindCNPJ},
		{name: "cnpj wrong digit", input: "11.222.333/0001-82", wantErr: true},
		{name: "formatted cpf", input: "529.982.247-25", want: KindCPF},
		{name: "cpf wrong digit", input: "529.982.247-26", wantErr: true},
		{name: "repeated digits", input: "00.000.000/0000-00", wantErr: true},
		{name: "too short", input: "1234", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := Validate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTaxID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", Format("11222333000181"))
	assert.Equal(t, "529.982.247-25", Format("52998224725"))
	assert.Equal(t, "abc", Format("abc"))
}
