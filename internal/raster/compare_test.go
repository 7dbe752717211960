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


package raster

import (
	"testing"
)

func TestCompareIdentical(t *testing.T) {
	a:=NewRandom(8, 8, 8)
	d, err:=Compare(a, a.Clone())
	if err!=nil { t.Fatal(err) }
	if !d.Identical || d.Differing!=0 || d.MaxAbs!=0 || d.MeanDeltaE!=0 { t.Errorf("diff=%+v; want identical", d) }
	if d.String()!="identical" { t.Errorf("String()=%s", d.String()) }
}

func TestCompareDiffering(t *testing.T) {
	a:=NewUniform(2, 2, 100)
	b:=a.Clone()
	b.Set(0, 1, 1, 110)
	b.Set(2, 0, 0, 98)
	d, err:=Compare(a, b)
	if err!=nil { t.Fatal(err) }
	if d.Identical || d.Differing!=2 { t.Errorf("differing=%d; want 2", d.Differing) }
	if d.MaxAbs!=10 { t.Errorf("maxAbs=%f; want 10", d.MaxAbs) }
	if d.MeanAbs!=1 { t.Errorf("meanAbs=%f; want 1", d.MeanAbs) }
	if !(d.MeanDeltaE>0) { t.Errorf("meanDeltaE=%f; want >0", d.MeanDeltaE) }
}

func TestCompareDimensionMismatch(t *testing.T) {
	if _, err:=Compare(New(3, 3), New(3, 2)); err==nil { t.Errorf("want error") }
}
