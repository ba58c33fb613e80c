package mesh

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

var white = mgl32.Vec3{1, 1, 1}

// DecodeOBJ reads an OBJ model, fan-triangulates its faces and deduplicates
// the resulting vertices. mtl may be nil. Vertex color is white and the V
// texture coordinate is flipped to a top-left origin.
func DecodeOBJ(r io.Reader, mtl io.Reader) (Mesh, error) {
	if mtl == nil {
		mtl = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(r, mtl)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "decode obj")
	}

	var b Builder
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					v, err := faceVertex(decoder, face, corner)
					if err != nil {
						return Mesh{}, err
					}
					b.Add(v)
				}
			}
		}
	}

	m := b.Mesh()
	if m.Empty() {
		return Mesh{}, errors.New("obj contains no faces")
	}
	return m, nil
}

func faceVertex(decoder *obj.Decoder, face obj.Face, corner int) (Vertex, error) {
	vertInd := face.Vertices[corner]
	if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
		return Vertex{}, errors.Newf("face references missing vertex %d", vertInd)
	}

	vert := Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[vertInd*3],
			decoder.Vertices[vertInd*3+1],
			decoder.Vertices[vertInd*3+2],
		},
		Color: white,
	}

	if corner < len(face.Uvs) {
		uvInd := face.Uvs[corner]
		if uvInd >= 0 && uvInd*2+1 < len(decoder.Uvs) {
			vert.TexCoord = mgl32.Vec2{
				decoder.Uvs[uvInd*2],
				1.0 - decoder.Uvs[uvInd*2+1],
			}
		}
	}

	return vert, nil
}

// LoadOBJ decodes the OBJ file at path, with an optional MTL file.
func LoadOBJ(path, mtlPath string) (Mesh, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "open mesh")
	}
	defer meshFile.Close()

	var mtl io.Reader
	if mtlPath != "" {
		matFile, err := os.Open(mtlPath)
		if err != nil {
			return Mesh{}, errors.Wrap(err, "open material")
		}
		defer matFile.Close()
		mtl = matFile
	}

	m, err := DecodeOBJ(meshFile, mtl)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}
