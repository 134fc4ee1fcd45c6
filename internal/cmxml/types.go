package cmxml

import "encoding/xml"

// mdf is the root of a DolbyLabsMDF content-mapping document. Only the
// elements consumed by the generator are modelled.
type mdf struct {
	XMLName xml.Name `xml:"DolbyLabsMDF"`
	Version string   `xml:"version,attr"`
	Tracks  []track  `xml:"Outputs>Output>Video>Track"`
}

type track struct {
	Global *globalData `xml:"PluginNode>DVGlobalData"`
	Shots  []shot      `xml:"Shot"`
}

type globalData struct {
	MasteringDisplay *display  `xml:"MasteringDisplay"`
	TargetDisplays   []display `xml:"TargetDisplay"`
	Level6           *level6   `xml:"Level6"`
}

type display struct {
	ID                string  `xml:"ID"`
	PeakBrightness    *string `xml:"PeakBrightness"`
	MinimumBrightness *string `xml:"MinimumBrightness"`
}

type level6 struct {
	MaxCLL  *string `xml:"MaxCLL"`
	MaxFALL *string `xml:"MaxFALL"`
}

type shot struct {
	UniqueID string       `xml:"UniqueID"`
	Record   *record      `xml:"Record"`
	Dynamic  *dynamicData `xml:"PluginNode>DVDynamicData"`
	Frames   []frameEdit  `xml:"PluginNode>Frame"`
}

type record struct {
	In       *string `xml:"In"`
	Duration *string `xml:"Duration"`
}

type frameEdit struct {
	EditOffset *string      `xml:"EditOffset"`
	Dynamic    *dynamicData `xml:"DVDynamicData"`
}

type dynamicData struct {
	Level1 *level1Node  `xml:"Level1"`
	Level2 []level2Node `xml:"Level2"`
	Level3 *level3Node  `xml:"Level3"`
}

type level1Node struct {
	ImageCharacter string `xml:"ImageCharacter"`
}

type level2Node struct {
	TID  string `xml:"TID"`
	Trim string `xml:"Trim"`
}

type level3Node struct {
	L1Offset string `xml:"L1Offset"`
}
