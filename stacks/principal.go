package stacks

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	ContractNameMinLength = 1
	ContractNameMaxLength = 40
)

var (
	ErrInvalidContractName = errors.New("invalid contract name")
	ErrInvalidPrincipal    = errors.New("invalid principal")

	contractNameRegex = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9]|[-_])*$`)
)

// ValidateContractName checks the Clarity contract name grammar.
func ValidateContractName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not utf-8", ErrInvalidContractName)
	}
	if len(name) < ContractNameMinLength || len(name) > ContractNameMaxLength {
		return fmt.Errorf("%w: length %d", ErrInvalidContractName, len(name))
	}
	if !contractNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidContractName, name)
	}
	return nil
}

// Principal is either a standard address or, when ContractName is set, a
// contract deployed by that address.
type Principal struct {
	Address      Address
	ContractName string
}

func StandardPrincipal(addr Address) Principal {
	return Principal{Address: addr}
}

func ContractPrincipal(addr Address, name string) (Principal, error) {
	if err := ValidateContractName(name); err != nil {
		return Principal{}, err
	}
	return Principal{Address: addr, ContractName: name}, nil
}

func (p Principal) IsContract() bool {
	return p.ContractName != ""
}

func (p Principal) String() string {
	if p.IsContract() {
		return p.Address.String() + "." + p.ContractName
	}
	return p.Address.String()
}

// ParsePrincipal accepts "<address>" or "<address>.<contract-name>".
func ParsePrincipal(s string) (Principal, error) {
	addrPart, name, isContract := strings.Cut(s, ".")

	addr, err := ParseAddress(addrPart)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	if !isContract {
		return StandardPrincipal(addr), nil
	}
	return ContractPrincipal(addr, name)
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
