// Package testutil holds fixtures shared by package tests: sample instance
// trees, a fault-injecting filesystem, and deterministic run identities.
package testutil

import (
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/value"
)

// SamplePlace builds a small place that exercises every representation
// kind: services, folders with duplicate names, leaf scripts of each run
// context, a module script with children, non-default properties,
// attributes, tags, a cross reference, a name that needs sanitizing, and a
// class the built-in catalog lacks.
func SamplePlace() *instance.Instance {
	baseplate := instance.New("Part", "Baseplate").WithID("baseplate").
		Set("Anchored", value.Bool(true)).
		Set("Size", value.Vector3{X: 512, Y: 20, Z: 512}).
		Set("Color", value.Color3{R: 0.25, G: 0.5, B: 0.25})

	trunk := instance.New("Part", "Trunk").WithID("trunk").
		Set("Anchored", value.Bool(true))
	leaves := instance.New("Part", "Leaves").WithID("leaves").
		Set("Shape", value.Enum(0))
	tree := instance.New("Model", "Tree").WithID("tree").
		Set("PrimaryPart", value.Ref{ID: "trunk"}).
		AddChild(trunk, leaves)

	workspace := instance.New("Workspace", "Workspace").WithID("workspace").AddChild(
		baseplate,
		tree,
		instance.New("Folder", "Bar").WithID("bar-1"),
		instance.New("Folder", "Bar").WithID("bar-2"),
	)

	main := instance.New("Script", "Main").WithID("main").
		Set("Source", value.String("print(\"hello\")\n"))
	util := instance.New("ModuleScript", "Util").WithID("util").
		Set("Source", value.String("return 1\n"))
	lib := instance.New("ModuleScript", "Lib").WithID("lib").
		Set("Source", value.String("return {}\n")).
		AddChild(util)
	disabled := instance.New("Script", "Old").WithID("old").
		Set("Source", value.String("")).
		Set("Disabled", value.Bool(true))
	sss := instance.New("ServerScriptService", "ServerScriptService").WithID("sss").
		AddChild(main, lib, disabled)

	config := instance.New("Folder", "Config").WithID("config").
		SetAttribute("Difficulty", value.Int32(3)).
		SetAttribute("Motto", value.String("h\u00e9llo w\u00f6rld"))
	config.Tags = []string{"Settings", "Persistent"}
	config.AddChild(
		instance.New("StringValue", "Motd").WithID("motd").Set("Value", value.String("Welcome")),
		instance.New("IntValue", "MaxPlayers").WithID("max").Set("Value", value.Int64(24)),
		instance.New("ObjectValue", "SpawnTree").WithID("link").Set("Value", value.Ref{ID: "tree"}),
		instance.New("Folder", "Weird/Name:?").WithID("weird"),
	)
	rs := instance.New("ReplicatedStorage", "ReplicatedStorage").WithID("rs").
		AddChild(config, instance.New("Gizmo", "Widget").WithID("widget").Set("Spin", value.Float32(1.5)))

	client := instance.New("LocalScript", "Client").WithID("client").
		Set("Source", value.String("local p = game.Players.LocalPlayer\n"))
	starter := instance.New("StarterPlayer", "StarterPlayer").WithID("sp").AddChild(
		instance.New("StarterPlayerScripts", "StarterPlayerScripts").WithID("sps").AddChild(client),
	)

	return instance.New("DataModel", "Place").WithID("root").AddChild(workspace, sss, rs, starter)
}

// AllTypes builds a folder carrying one attribute of every encodable value
// type except references, plus one property.
func AllTypes() *instance.Instance {
	attrs := map[string]value.Value{
		"binary":      value.BinaryString("\x00\x01binary\xff"),
		"bool":        value.Bool(true),
		"cframe":      value.CFrame{Position: value.Vector3{X: 1, Y: 2, Z: 3}, Orientation: [3]value.Vector3{{X: 0, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 0}, {X: -1, Y: 0, Z: 0}}},
		"color3":      value.Color3{R: 0.1, G: 0.2, B: 0.3},
		"color3uint8": value.Color3uint8{R: 10, G: 20, B: 255},
		"content":     value.Content("rbxassetid://12345"),
		"enum":        value.Enum(7),
		"float32":     value.Float32(0.1),
		"float64":     value.Float64(0.1),
		"int32":       value.Int32(-42),
		"int64":       value.Int64(1 << 53),
		"numberRange": value.NumberRange{Min: -1, Max: 1},
		"string":      value.String("multi\nline \"quoted\""),
		"udim":        value.UDim{Scale: 0.5, Offset: -10},
		"udim2":       value.UDim2{X: value.UDim{Scale: 1, Offset: 0}, Y: value.UDim{Scale: 0, Offset: 36}},
		"vector2":     value.Vector2{X: 3.5, Y: -2},
		"vector3":     value.Vector3{X: 1e-7, Y: 1e7, Z: 0},
	}
	folder := instance.New("Folder", "Everything").WithID("everything")
	for k, v := range attrs {
		folder.SetAttribute(k, v)
	}
	folder.Set("Archivable", value.Bool(false))
	return folder
}
