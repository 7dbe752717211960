// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package ops

import (
	"encoding/json"
	"fmt"
)

// Applies a sequence of operators to a promise. Number of inputs, outputs as per the chained steps 
type OpSequence struct {
	OpBase
	Steps       []Operator        `json:"-"`      // the actual steps
	StepsRaw    []json.RawMessage `json:"steps"`  // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault()}) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase : OpBase{Type: "seq", Active: len(steps)>0},
		Steps  : steps,
	}
}

// Decodes a single polymorphic operator from JSON, based on its type string
func UnmarshalOperator(raw []byte) (Operator, error) {
	var base OpBase
	if err:=json.Unmarshal(raw, &base); err!=nil { return nil, err }
	factory:=GetOperatorFactory(base.Type)
	if factory==nil { return nil, fmt.Errorf("unknown operator type '%s' in raw JSON message '%s'", base.Type, string(raw)) }
	op:=factory()
	if err:=json.Unmarshal(raw, op); err!=nil { return nil, err }
	return op, nil
}

// Unmarshals a sequence of polymorphic operators from JSON, using the temporary op.StepsRaw
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	op.Active=true
	if err:=json.Unmarshal(b, (*alias)(op)); err!=nil { return err }
	for _, raw := range op.StepsRaw {
		step, err:=UnmarshalOperator(raw)
		if err!=nil { return err }
		op.Steps=append(op.Steps, step)
	}
	op.StepsRaw=nil
	return nil
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct{
		Type   string     `json:"type"`
		Active bool       `json:"active"`
		Steps  []Operator `json:"steps"`
	}{op.Type, op.Active, op.Steps})
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps=append(op.Steps, steps...)
	op.Active=len(op.Steps)>0
}

func (op *OpSequence) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	outs=ins
	for _, step:=range op.Steps {
		if !step.IsActive() { continue }
		if outs, err=step.MakePromises(outs, c); err!=nil { return nil, err }
	}
	return outs, nil
}


// Applies a single operator to each input. Takes n inputs, produces n outputs
type OpForEach struct {
	OpBase
	Operation    Operator         `json:"-"`
	OperationRaw json.RawMessage  `json:"operation"`  // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpForEachDefault()}) } // register the operator for JSON decoding

func NewOpForEachDefault() *OpForEach { return NewOpForEach(nil) }

func NewOpForEach(operation Operator) *OpForEach {
	return &OpForEach{
		OpBase    : OpBase{Type: "forEach", Active: operation!=nil},
		Operation : operation, 
	} 
}

func (op *OpForEach) UnmarshalJSON(b []byte) error {
	type alias OpForEach
	op.Active=true
	if err:=json.Unmarshal(b, (*alias)(op)); err!=nil { return err }
	if len(op.OperationRaw)==0 || string(op.OperationRaw)=="null" { return nil }
	operation, err:=UnmarshalOperator(op.OperationRaw)
	if err!=nil { return err }
	op.Operation, op.OperationRaw=operation, nil
	return nil
}

func (op *OpForEach) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct{
		Type      string   `json:"type"`
		Active    bool     `json:"active"`
		Operation Operator `json:"operation"`
	}{op.Type, op.Active, op.Operation})
}

func (op *OpForEach) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins)==0 { return ins, nil }
	if op.Operation==nil { return nil, fmt.Errorf("%s operator has no operation to apply", op.Type) }
	for _,in:=range(ins) {
		out, err:=op.Operation.MakePromises([]Promise{in}, c)
		if err!=nil { return nil, err }
		if len(out)!=1 { return nil, fmt.Errorf("%s operator needs exactly one promise from embedded operation", op.Type) }
		outs=append(outs, out[0])
	}
	return outs, nil
}
