package window

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// commands returns the (frame, actuator) command source of a loop.
func commands(ds *aotdata.Dataset, loopIndex int) (*aotdata.Loop, aotdata.Source, []int, error) {
	l, err := ds.Loop(loopIndex)
	if err != nil {
		return nil, nil, nil, err
	}
	src, err := aotdata.Require(l.Commands, l.UID, "command")
	if err != nil {
		return nil, nil, nil, err
	}
	shape, err := checkShape(src, l.UID, "commands", 2)
	if err != nil {
		return nil, nil, nil, err
	}
	return l, src, shape, nil
}

// influence returns the (actuator, col, row) influence function of the
// corrector a loop commands. Its actuator count must match the commands.
func influence(ds *aotdata.Dataset, l *aotdata.Loop, actuators int) (aotdata.Source, []int, error) {
	c, err := ds.LoopCorrector(l)
	if err != nil {
		return nil, nil, err
	}
	src, err := aotdata.Require(c.InfluenceFunction, c.UID, "influence function")
	if err != nil {
		return nil, nil, err
	}
	shape, err := checkShape(src, c.UID, "influence function", 3)
	if err != nil {
		return nil, nil, err
	}
	if shape[0] != actuators {
		return nil, nil, fmt.Errorf("%s: influence function has %d actuators, %s commands %d",
			c.UID, shape[0], l.UID, actuators)
	}
	return src, shape, nil
}

// CommandTile reads a (frame × actuator) block of raw commands.
func CommandTile(ds *aotdata.Dataset, loopIndex int, req TileRequest) (*ndarray.Array, TileRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, req, err
	}
	_, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, req, err
	}
	req, err = req.Clamp(shape[0], shape[1])
	if err != nil {
		return nil, req, err
	}
	tile, err := readTile(src, req)
	return tile, req, err
}

// CommandImage projects one frame of commands through the influence
// function, giving the (col, row) surface the corrector produced. Any pixel
// whose influence column holds a NaN is NaN.
func CommandImage(ds *aotdata.Dataset, loopIndex, frame int) (*ndarray.Array, error) {
	l, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("frame_index", frame, shape[0]); err != nil {
		return nil, err
	}
	nact := shape[1]
	ifSrc, ifShape, err := influence(ds, l, nact)
	if err != nil {
		return nil, err
	}
	cmd, err := src.ReadSlice([]int{frame, 0}, []int{1, nact})
	if err != nil {
		return nil, err
	}
	inf, err := ifSrc.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read influence function: %w", err)
	}

	npix := ifShape[1] * ifShape[2]
	out := ndarray.New(ifShape[1], ifShape[2])
	if nact == 0 || npix == 0 {
		return out, nil
	}
	m := mat.NewDense(nact, npix, inf.Data())
	var img mat.VecDense
	img.MulVec(m.T(), mat.NewVecDense(nact, cmd.Data()))

	data := out.Data()
	for p := range data {
		data[p] = img.AtVec(p)
	}
	for a := 0; a < nact; a++ {
		row := inf.Data()[a*npix : (a+1)*npix]
		for p, v := range row {
			if math.IsNaN(v) {
				data[p] = math.NaN()
			}
		}
	}
	return out, nil
}

// pixelInfluence reads IF[:, col, row] after validating the pixel.
func pixelInfluence(ifSrc aotdata.Source, ifShape []int, col, row int) ([]float64, error) {
	if err := aoerr.CheckIndex("point_col", col, ifShape[1]); err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("point_row", row, ifShape[2]); err != nil {
		return nil, err
	}
	arr, err := ifSrc.ReadSlice([]int{0, col, row}, []int{ifShape[0], 1, 1})
	if err != nil {
		return nil, err
	}
	return arr.Data(), nil
}

// CommandPointSeries is the reconstructed surface value at one pixel over
// every frame: commands · IF[:, col, row].
func CommandPointSeries(ds *aotdata.Dataset, loopIndex, col, row int) ([]float64, error) {
	l, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	ifSrc, ifShape, err := influence(ds, l, shape[1])
	if err != nil {
		return nil, err
	}
	pix, err := pixelInfluence(ifSrc, ifShape, col, row)
	if err != nil {
		return nil, err
	}
	cmds, err := src.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}

	series := make([]float64, shape[0])
	if shape[0] == 0 || shape[1] == 0 {
		return series, nil
	}
	if floats.HasNaN(pix) {
		for i := range series {
			series[i] = math.NaN()
		}
		return series, nil
	}
	var v mat.VecDense
	v.MulVec(mat.NewDense(shape[0], shape[1], cmds.Data()), mat.NewVecDense(len(pix), pix))
	for i := range series {
		series[i] = v.AtVec(i)
	}
	return series, nil
}

// PointContributions is the per-actuator contribution to one pixel at one
// frame: commands[frame, a] * IF[a, col, row].
func PointContributions(ds *aotdata.Dataset, loopIndex, frame, col, row int) ([]float64, error) {
	l, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("frame_index", frame, shape[0]); err != nil {
		return nil, err
	}
	ifSrc, ifShape, err := influence(ds, l, shape[1])
	if err != nil {
		return nil, err
	}
	pix, err := pixelInfluence(ifSrc, ifShape, col, row)
	if err != nil {
		return nil, err
	}
	cmd, err := src.ReadSlice([]int{frame, 0}, []int{1, shape[1]})
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pix))
	floats.MulTo(out, cmd.Data(), pix)
	return out, nil
}

// ActuatorSeries reads the command series of one actuator.
func ActuatorSeries(ds *aotdata.Dataset, loopIndex, actuator int) ([]float64, error) {
	_, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("actuator_index", actuator, shape[1]); err != nil {
		return nil, err
	}
	arr, err := src.ReadSlice([]int{0, actuator}, []int{shape[0], 1})
	if err != nil {
		return nil, err
	}
	return arr.Data(), nil
}

// ActuatorContribution is the (col, row) surface one actuator produced at
// one frame: commands[frame, a] * IF[a, :, :].
func ActuatorContribution(ds *aotdata.Dataset, loopIndex, frame, actuator int) (*ndarray.Array, error) {
	l, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("frame_index", frame, shape[0]); err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("actuator_index", actuator, shape[1]); err != nil {
		return nil, err
	}
	ifSrc, ifShape, err := influence(ds, l, shape[1])
	if err != nil {
		return nil, err
	}
	cmd, err := src.ReadSlice([]int{frame, actuator}, []int{1, 1})
	if err != nil {
		return nil, err
	}
	plane, err := ifSrc.ReadSlice([]int{actuator, 0, 0}, []int{1, ifShape[1], ifShape[2]})
	if err != nil {
		return nil, err
	}
	out := ndarray.New(ifShape[1], ifShape[2])
	floats.ScaleTo(out.Data(), cmd.Data()[0], plane.Data())
	return out, nil
}

// CommandValues reads every command of a loop.
func CommandValues(ds *aotdata.Dataset, loopIndex int) (*ndarray.Array, error) {
	_, src, _, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	arr, err := src.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	return arr, nil
}

// Lookup maps between (col, row) pixels and the dense index of valid
// pixels. A pixel is valid unless its influence is NaN for every actuator.
type Lookup struct {
	ColRowToIndex [][]int  `json:"col_row_to_index"`
	IndexToColRow [][2]int `json:"index_to_col_row"`
}

// ValidPixelLookup builds the pixel lookup for the corrector a loop commands.
func ValidPixelLookup(ds *aotdata.Dataset, loopIndex int) (*Lookup, error) {
	l, _, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	ifSrc, ifShape, err := influence(ds, l, shape[1])
	if err != nil {
		return nil, err
	}
	inf, err := ifSrc.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read influence function: %w", err)
	}
	return lookupFrom(inf, ifShape), nil
}

func lookupFrom(inf *ndarray.Array, shape []int) *Lookup {
	nact, nc, nr := shape[0], shape[1], shape[2]
	npix := nc * nr
	data := inf.Data()

	lk := &Lookup{ColRowToIndex: make([][]int, nc), IndexToColRow: [][2]int{}}
	for c := 0; c < nc; c++ {
		lk.ColRowToIndex[c] = make([]int, nr)
		for r := 0; r < nr; r++ {
			p := c*nr + r
			valid := false
			for a := 0; a < nact; a++ {
				if !math.IsNaN(data[a*npix+p]) {
					valid = true
					break
				}
			}
			if !valid {
				lk.ColRowToIndex[c][r] = -1
				continue
			}
			lk.ColRowToIndex[c][r] = len(lk.IndexToColRow)
			lk.IndexToColRow = append(lk.IndexToColRow, [2]int{c, r})
		}
	}
	return lk
}
