package livemap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"image"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dsvg"

	"openf1companion/pkg/caster"
	"openf1companion/pkg/layout"
	"openf1companion/pkg/tracker"
)

// CarPosition is one car dot on the live map, already transformed into
// SVG image coordinates.
type CarPosition struct {
	Driver string  `json:"dri"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Corner int     `json:"corner,omitempty"`
}

var upgrader = websocket.Upgrader{} // use default options

var positionCaster = caster.JSONChannelCaster[[]CarPosition]{}

// LiveMap serves the /live page and its /livemap websocket: the circuit
// SVG with the tracked cars drawn on top, refreshed from the per-driver
// snapshot topics.
type LiveMap struct {
	running     bool
	svgPath     string
	svgName     string
	gc          draw2d.GraphicContext
	svgMetadata layout.SvgMetadata
	svgRect     image.Rectangle
	positions   map[int]CarPosition
	mu          sync.Mutex
}

type snapshotBus interface {
	Subscribe(topic string) <-chan tracker.Snapshot
}

func NewLiveMap(r *mux.Router, snapshots snapshotBus, drivers []int) *LiveMap {
	lm := &LiveMap{
		positions: make(map[int]CarPosition),
	}

	for _, driver := range drivers {
		ch := snapshots.Subscribe(tracker.SnapshotTopicPrefix + strconv.Itoa(driver))
		go lm.consumeSnapshots(ch)
	}

	lm.addHandlers(r)
	return lm
}

func (lm *LiveMap) consumeSnapshots(snapshots <-chan tracker.Snapshot) {
	for snap := range snapshots {
		lm.mu.Lock()
		if !lm.running || snap.Position == nil {
			lm.mu.Unlock()
			continue
		}
		p := lm.transformPosition(snap.Position.X, snap.Position.Y, layout.ScaleSVG)
		p.Driver = strconv.Itoa(snap.DriverNumber)
		if snap.HasCorner {
			p.Corner = snap.ActiveCorner
		}
		lm.positions[snap.DriverNumber] = p
		lm.mu.Unlock()
	}
}

// Start reads the coordinate metadata appended to the generated circuit
// SVG and begins pushing positions. The metadata sits on the
// second-to-last line, inside the trailing XML comment.
func (lm *LiveMap) Start(svgPath, svgName string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	svgFile, err := os.Open(svgPath)
	if err != nil {
		return err
	}
	defer svgFile.Close()

	scanner := bufio.NewScanner(svgFile)
	var lastLine, secondLastLine string
	for scanner.Scan() {
		secondLastLine = lastLine
		lastLine = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if secondLastLine == "" {
		return fmt.Errorf("svg %s carries no coordinate metadata", svgPath)
	}
	if err := json.Unmarshal([]byte(secondLastLine), &lm.svgMetadata); err != nil {
		return err
	}

	lm.svgPath = svgPath
	lm.svgName = svgName
	lm.svgRect = image.Rect(0, 0, int(lm.svgMetadata.Width), int(lm.svgMetadata.Height))
	lm.gc = draw2dsvg.NewGraphicContext(draw2dsvg.NewSvg())
	lm.running = true
	log.Printf("live map started for %s", svgName)
	return nil
}

func (lm *LiveMap) Stop() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.running = false
}

func (lm *LiveMap) websocketHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Print("upgrade:", err)
			return
		}
		defer c.Close()
		mt, _, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				lm.mu.Lock()
				cars := make([]CarPosition, 0, len(lm.positions))
				for _, p := range lm.positions {
					cars = append(cars, p)
				}
				lm.mu.Unlock()
				frame, err := positionCaster.To(cars)
				if err != nil {
					log.Println("marshal:", err)
					return
				}
				if err := c.WriteMessage(mt, []byte(frame)); err != nil {
					log.Println("write:", err)
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

type pageData struct {
	WebSocketURL string
	TrackURL     string
	Width        int
	Height       int
	Scale        float64
}

func (lm *LiveMap) livePageHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		lm.mu.Lock()
		running, svgName := lm.running, lm.svgName
		width, height := int(lm.svgMetadata.Width), int(lm.svgMetadata.Height)
		lm.mu.Unlock()

		if !running {
			fmt.Fprintf(w, "No session is being tracked right now")
			return
		}
		e := pageData{
			WebSocketURL: "ws://" + r.Host + "/livemap",
			TrackURL:     "http://" + r.Host + "/resources/" + svgName,
			Width:        width,
			Height:       height,
			Scale:        (1.0 - layout.ScaleSVG),
		}
		homeTemplate.Execute(w, e)
	}
}

func (lm *LiveMap) addHandlers(r *mux.Router) {
	r.HandleFunc("/livemap", lm.websocketHandler())
	r.HandleFunc("/live", lm.livePageHandler())
}

// Flips the image around the Y axis.
func invertY(gc draw2d.GraphicContext, rect image.Rectangle) {
	height := rect.Max.Y
	gc.Translate(0, float64(height))
	gc.Scale(1.0, -1.0)
}

// transformPosition runs a telemetry coordinate through the same
// transform the SVG was rendered with, so the dot lands on the track.
func (lm *LiveMap) transformPosition(dataX, dataY, factor float64) CarPosition {
	lm.gc.Save()
	lm.gc.MoveTo(dataX*(1.0-factor)+lm.svgMetadata.OffsetX, dataY*(1.0-factor)+lm.svgMetadata.OffsetY)
	invertY(lm.gc, lm.svgRect)
	if lm.svgMetadata.Rotate {
		lm.gc.Rotate(math.Pi / 2)
		f := lm.svgMetadata.Width / lm.svgMetadata.Height
		lm.gc.Translate(0, -f*float64(lm.svgRect.Max.Y))
	}
	x, y := lm.gc.LastPoint()
	lp := []float64{x, y}
	m := lm.gc.GetMatrixTransform()
	m.Transform(lp)
	lm.gc.Restore()
	return CarPosition{X: lp[0], Z: lp[1]}
}

var homeTemplate = template.Must(template.New("").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>OpenF1 LiveMap</title>
</head>
<body>

  <!-- SVG container -->
	<svg id="svgContainer" width="{{ .Width }}" height="{{ .Height }}" xmlns="http://www.w3.org/2000/svg"></svg>

  <script>
    const trackUrl = '{{ .TrackURL }}';
    const wsUrl = '{{ .WebSocketURL }}';

    // SVG container element
    const svgContainer = document.getElementById('svgContainer');

		const cars = new Map();

    // WebSocket connection
    const socket = new WebSocket(wsUrl);

    socket.addEventListener('open', (event) => {
			socket.send("start");
    });

    // Listen for position frames from the server
    socket.addEventListener('message', (event) => {
      const driversData = JSON.parse(event.data);

			const driversAlive = new Set();

			for (const data of driversData) {
				const x = data.x;
				const y = data.z;
				const id = data.dri;

				driversAlive.add(id);

				var carElements = null;
				if (!cars.has(id)) {
					carElements = buildCar(id);
					cars.set(id, carElements);
				} else {
					carElements = cars.get(id);
				}
				if (data.corner) {
					drawCar(carElements, x, y, '#E7E772', '#393939');
				} else {
					drawCar(carElements, x, y, '#EEEEEE', '#393939');
				}
			}

			// drop cars that stopped reporting
			allDrivers = cars.keys()
			for (const dri of allDrivers) {
				if (!driversAlive.has(dri)) {
					const carElements = cars.get(dri);
					carElements.car.remove();
					cars.delete(dri);
				}
			}
		});

    socket.addEventListener('close', (event) => {
      console.log('WebSocket connection closed:', event);
    });

    socket.addEventListener('error', (event) => {
      console.error('WebSocket connection error:', event);
    });

		function buildCar(id) {
			const carElement = document.createElementNS('http://www.w3.org/2000/svg', 'g');
			const circleElement = document.createElementNS('http://www.w3.org/2000/svg', 'circle');
			const textElement = document.createElementNS('http://www.w3.org/2000/svg', 'text');

			textElement.setAttribute('text-anchor', 'middle');
			textElement.setAttribute('dy', '.3em');
			textElement.setAttribute('stroke-width', '2px');
			textElement.setAttribute('font-size', '20px');
			textElement.textContent = id;
			circleElement.setAttribute('r', 25);
			circleElement.setAttribute('stroke', '#111111');
			circleElement.setAttribute('stroke-width', '2px');
			carElement.appendChild(circleElement);
			carElement.appendChild(textElement);

			svgContainer.appendChild(carElement);

			return {circle: circleElement, text: textElement, car: carElement};
		}

    function drawCar(carElements, x, y, bColor, fColor) {
			const circleElement = carElements.circle;
			const textElement = carElements.text;

			textElement.setAttribute('x', x);
			textElement.setAttribute('y', y);
			textElement.setAttribute('stroke', fColor);
			circleElement.setAttribute('cx', x);
      circleElement.setAttribute('cy', y);
			circleElement.setAttribute('fill', bColor);
    }

    async function downloadAndDisplaySVG(url) {
      try {
        const response = await fetch(url);

        if (!response.ok) {
          throw new Error(` + "`Failed to fetch SVG: ${response.statusText}`" + `);
        }

        const svgText = await response.text();
        svgContainer.innerHTML = svgText;
      } catch (error) {
        console.error(error.message);
      }
    }

    downloadAndDisplaySVG(trackUrl);
  </script>
</body>
</html>
`))
