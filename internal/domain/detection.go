package domain

import "time"

// BoundingBox 检测框（像素坐标），核心逻辑不读取它
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection 视觉模块输出的一条检测结果
type Detection struct {
	Box        BoundingBox `json:"box"`
	CardID     uint8       `json:"card_id"`
	Confidence float64     `json:"confidence"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Card 把检测结果解码为 Card，card_id 越界时 ok=false
func (d Detection) Card() (Card, bool) {
	c, ok := CardFromID(d.CardID)
	if !ok {
		return Card{}, false
	}
	c.Confidence = d.Confidence
	c.Timestamp = d.Timestamp
	return c, true
}

// Frame 一帧的全部检测结果
type Frame struct {
	Seq        uint64      `json:"seq"`
	CapturedAt time.Time   `json:"captured_at"`
	Detections []Detection `json:"detections"`
}
