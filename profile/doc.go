// Package profile stores MCP2210 settings as YAML files and moves them to and from a chip.
//
// # File Format
//
//	name: flash-adapter
//	chip:
//	  pins: [cs, gpio, gpio, gpio, gpio, gpio, dedicated, gpio, gpio]
//	  gpio_direction: 0x01FE
//	  gpio_value: 0x0001
//	  other: 0x02
//	spi:
//	  bit_rate: 12000000
//	  idle_cs: 0x0001
//	  active_cs: 0x0000
//	  cs_to_data_delay: 0
//	  data_to_cs_delay: 0
//	  inter_byte_delay: 0
//	  transfer_size: 4
//	  mode: 0
//	usb:
//	  vid: 0x04D8
//	  pid: 0x00DE
//	  power_option: 0x80
//	  current_ma: 100
//	  product: Flash Adapter
//	eeprom:
//	  - address: 0x00
//	    data: "DEADBEEF"
//
// Every section is optional. Pin designations are gpio, cs or dedicated.
// Integers accept decimal or 0x hex. EEPROM data is hex; whitespace inside
// it is ignored.
//
// # Usage
//
//	p, err := profile.Parse("flash-adapter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := profile.Apply(ctx, dev, p, profile.Boot); err != nil {
//	    log.Fatal(err)
//	}
package profile
